package localization

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"google.golang.org/grpc/metadata"
)

type contextKey string

func (c contextKey) String() string {
	return "modeltranslation/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// ToContext adds the caller's preferred languages, most preferred first, to the supplied context.
func ToContext(ctx context.Context, lang []string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, lang)
}

// Activate makes lang the active language of every operation using the returned context.
func Activate(ctx context.Context, lang string) context.Context {
	return ToContext(ctx, []string{lang})
}

// FromContext extracts language from the supplied context if any exist.
func FromContext(ctx context.Context) []string {
	languages, ok := ctx.Value(ctxKeyLanguage).([]string)
	if !ok {
		return nil
	}

	return languages
}

// ExtractLanguageFromHTTPRequest prefers an explicit lang form value over the Accept-Language header.
func ExtractLanguageFromHTTPRequest(req *http.Request) []string {
	lang := req.FormValue("lang")

	acceptedLang := ExtractLanguageFromHTTPHeader(req.Header)

	var languages []string
	if lang != "" {
		languages = append(languages, lang)
	}

	return append(languages, acceptedLang...)
}

func ExtractLanguageFromHTTPHeader(req http.Header) []string {
	return parseAcceptLanguage(req.Get("Accept-Language"))
}

func ExtractLanguageFromGrpcRequest(ctx context.Context) []string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}

	header, ok := md["accept-language"]
	if !ok || len(header) == 0 {
		return nil
	}
	return parseAcceptLanguage(header[0])
}

// parseAcceptLanguage orders the header entries by quality, dropping the weights.
func parseAcceptLanguage(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err == nil {
		languages := make([]string, 0, len(tags))
		for _, tag := range tags {
			languages = append(languages, tag.String())
		}
		return languages
	}

	var languages []string
	for _, entry := range strings.Split(header, ",") {
		code, _, _ := strings.Cut(entry, ";")
		code = strings.TrimSpace(code)
		if code != "" && code != "*" {
			languages = append(languages, code)
		}
	}
	return languages
}
