package localization

import (
	"context"
	"slices"
	"strings"

	"github.com/pitabwire/modeltranslation/config"
)

// Resolver maps the ambient language of an operation onto one of the configured languages.
// It is immutable once built and safe for concurrent use.
type Resolver struct {
	languages       []string
	defaultLanguage string
	lookup          map[string]string
}

// NewResolver fails with config.ErrConfiguration when defaultLanguage is not one of available.
func NewResolver(available []string, defaultLanguage string) (*Resolver, error) {
	err := config.ValidateLanguages(available, defaultLanguage)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		languages:       slices.Clone(available),
		defaultLanguage: defaultLanguage,
		lookup:          make(map[string]string, len(available)),
	}
	for _, lang := range available {
		r.lookup[canonical(lang)] = lang
	}
	return r, nil
}

// NewResolverFromConfig builds a resolver from the language settings of cfg.
func NewResolverFromConfig(cfg config.ConfigurationLanguages) (*Resolver, error) {
	return NewResolver(cfg.AvailableLanguages(), cfg.DefaultLanguage())
}

// Languages returns the configured languages in declaration order.
func (r *Resolver) Languages() []string {
	return slices.Clone(r.languages)
}

func (r *Resolver) Default() string {
	return r.defaultLanguage
}

func (r *Resolver) IsDefault(lang string) bool {
	return lang == r.defaultLanguage
}

// Resolve returns the active language of ctx. Each preferred language is tried as is
// and then without its region subtag; the default language is returned when none match.
func (r *Resolver) Resolve(ctx context.Context) string {
	for _, candidate := range FromContext(ctx) {
		if lang, ok := r.Match(candidate); ok {
			return lang
		}
	}
	return r.defaultLanguage
}

// Negotiate activates in ctx the first preferred language r serves, or the default one.
// With no preferences the languages already carried by ctx are used.
func (r *Resolver) Negotiate(ctx context.Context, preferred []string) (context.Context, string) {
	if len(preferred) > 0 {
		ctx = ToContext(ctx, preferred)
	}

	lang := r.Resolve(ctx)
	return Activate(ctx, lang), lang
}

// Match returns the configured language code equivalent to code, if any.
func (r *Resolver) Match(code string) (string, bool) {
	c := canonical(code)
	if c == "" {
		return "", false
	}

	if lang, ok := r.lookup[c]; ok {
		return lang, true
	}

	base, _, found := strings.Cut(c, "-")
	if !found {
		return "", false
	}

	lang, ok := r.lookup[base]
	return lang, ok
}

func canonical(code string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
}
