// Package schemasync compares translated models with their tables and adds the missing
// translation columns through the migration journal.
package schemasync

import (
	"slices"

	"github.com/pitabwire/modeltranslation/registry"
)

// Drift lists the languages whose column is missing for one translated field.
type Drift struct {
	BaseField        string
	MissingLanguages []string
}

// Detect reports, for every translated field of opts, the languages whose localized field is
// not among existing. Languages keep their configured order and fields without missing
// languages are left out.
func Detect(opts *registry.TranslationOptions, existing []string, languages []string) []Drift {
	var drifts []Drift
	for _, base := range opts.Fields() {
		var missing []string
		for _, lang := range languages {
			physical, ok := opts.LocalizedField(base, lang)
			if !ok || slices.Contains(existing, physical) {
				continue
			}
			missing = append(missing, lang)
		}

		if len(missing) > 0 {
			drifts = append(drifts, Drift{BaseField: base, MissingLanguages: missing})
		}
	}
	return drifts
}
