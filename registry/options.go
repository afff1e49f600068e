package registry

import (
	"maps"
	"slices"
)

// TranslationOptions records which fields of a model are translated and the
// per-language fields backing them. It is immutable once registered.
type TranslationOptions struct {
	modelID         string
	fields          []string
	localizedFields map[string][]string
	reverseMap      map[string]string
	languageOf      map[string]string
	byLanguage      map[string]map[string]string
}

func newTranslationOptions(modelID string, fields []string, languages []string, build func(base, lang string) string) *TranslationOptions {
	opts := &TranslationOptions{
		modelID:         modelID,
		fields:          fields,
		localizedFields: make(map[string][]string, len(fields)),
		reverseMap:      map[string]string{},
		languageOf:      map[string]string{},
		byLanguage:      make(map[string]map[string]string, len(fields)),
	}

	for _, base := range fields {
		opts.byLanguage[base] = make(map[string]string, len(languages))
		for _, lang := range languages {
			physical := build(base, lang)
			opts.localizedFields[base] = append(opts.localizedFields[base], physical)
			opts.reverseMap[physical] = base
			opts.languageOf[physical] = lang
			opts.byLanguage[base][lang] = physical
		}
	}
	return opts
}

func (o *TranslationOptions) ModelID() string {
	return o.modelID
}

// Fields returns the translated base fields in sorted order.
func (o *TranslationOptions) Fields() []string {
	return slices.Clone(o.fields)
}

func (o *TranslationOptions) HasField(base string) bool {
	_, ok := o.byLanguage[base]
	return ok
}

// LocalizedFields maps every base field to its physical fields in language order.
func (o *TranslationOptions) LocalizedFields() map[string][]string {
	out := make(map[string][]string, len(o.localizedFields))
	for base, physical := range o.localizedFields {
		out[base] = slices.Clone(physical)
	}
	return out
}

// LocalizedFieldNames returns the physical fields of one base field in language order.
func (o *TranslationOptions) LocalizedFieldNames(base string) []string {
	return slices.Clone(o.localizedFields[base])
}

// ReverseMap maps every physical field back to its base field.
func (o *TranslationOptions) ReverseMap() map[string]string {
	return maps.Clone(o.reverseMap)
}

// BaseField returns the base field a physical field belongs to.
func (o *TranslationOptions) BaseField(physical string) (string, bool) {
	base, ok := o.reverseMap[physical]
	return base, ok
}

// Language returns the language a physical field stores.
func (o *TranslationOptions) Language(physical string) (string, bool) {
	lang, ok := o.languageOf[physical]
	return lang, ok
}

// LocalizedField returns the physical field storing base in lang.
func (o *TranslationOptions) LocalizedField(base, lang string) (string, bool) {
	physical, ok := o.byLanguage[base][lang]
	return physical, ok
}
