// Package fieldname derives the names of the per-language storage fields
// that back a translatable field.
package fieldname

import (
	"fmt"
	"strings"
)

// Normalize turns a language code into a form usable inside a field name.
func Normalize(lang string) string {
	return strings.ReplaceAll(lang, "-", "_")
}

// Build returns the physical field name holding the value of base in lang,
// e.g. Build("title", "pt-br") == "title_pt_br".
func Build(base, lang string) string {
	return base + "_" + Normalize(lang)
}

// BuildAll returns the physical field names of base for every language, in language order.
func BuildAll(base string, languages []string) []string {
	names := make([]string, 0, len(languages))
	for _, lang := range languages {
		names = append(names, Build(base, lang))
	}
	return names
}

// VerboseName labels a localized field, e.g. "Title [de]".
func VerboseName(verboseName, lang string) string {
	return fmt.Sprintf("%s [%s]", verboseName, lang)
}
