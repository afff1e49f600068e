package http

import (
	"net/http"

	"github.com/pitabwire/modeltranslation/localization"
)

const headerContentLanguage = "Content-Language"

// LanguageHTTPMiddleware activates the language negotiated from the lang form value and the
// Accept-Language header of each request, and reports it in the Content-Language response header.
func LanguageHTTPMiddleware(resolver *localization.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, lang := resolver.Negotiate(r.Context(), localization.ExtractLanguageFromHTTPRequest(r))
			w.Header().Set(headerContentLanguage, lang)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
