// Package admin adapts the editing layout of a translated model. Layout
// options written against base fields are expanded onto their per-language
// fields, and form fields are patched so editors work on the localized
// inputs while the base field stays hidden.
package admin

import (
	"context"
	"maps"
	"slices"

	"github.com/pitabwire/util"

	"github.com/pitabwire/modeltranslation/fieldname"
	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
)

const (
	// FieldsetClass marks the fieldset grouping the localized fields of one base field.
	FieldsetClass = "modeltranslations"
	// WidgetClass marks every localized input.
	WidgetClass = "modeltranslation"
	// DefaultWidgetClass additionally marks the input of the default language.
	DefaultWidgetClass = "modeltranslation-default"
)

// Fieldset is a titled group of fields on an edit form.
type Fieldset struct {
	Name    string
	Fields  []string
	Classes []string
}

// Layout is the editing configuration of one model.
type Layout struct {
	Fields       []string
	Fieldsets    []Fieldset
	ListDisplay  []string
	ListEditable []string
	// Prepopulated maps a field to the fields its value is derived from.
	Prepopulated map[string][]string
}

// Saver persists an instance.
type Saver interface {
	Save(ctx context.Context, inst *model.Instance) error
}

// Option configures a ModelAdmin.
type Option func(*ModelAdmin)

// WithLabels translates verbose names through manager.
func WithLabels(manager localization.Manager) Option {
	return func(a *ModelAdmin) {
		a.labels = manager
	}
}

// ModelAdmin expands the layout and form of one translated model.
type ModelAdmin struct {
	registry *registry.Registry
	def      *model.Definition
	opts     *registry.TranslationOptions
	labels   localization.Manager
}

// New fails with registry.ErrNotRegistered when modelID is not translated.
func New(reg *registry.Registry, modelID string, opts ...Option) (*ModelAdmin, error) {
	trOpts, err := reg.GetOptions(modelID)
	if err != nil {
		return nil, err
	}

	def, err := reg.Schema().Definition(modelID)
	if err != nil {
		return nil, err
	}

	a := &ModelAdmin{
		registry: reg,
		def:      def,
		opts:     trOpts,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *ModelAdmin) Options() *registry.TranslationOptions {
	return a.opts
}

// Expand rewrites every part of layout that names translated base fields.
func (a *ModelAdmin) Expand(ctx context.Context, layout Layout) Layout {
	editable, display := a.ExpandListEditable(layout.ListEditable, layout.ListDisplay)
	return Layout{
		Fields:       a.ExpandFields(layout.Fields),
		Fieldsets:    a.ExpandFieldsets(ctx, layout.Fieldsets),
		ListDisplay:  display,
		ListEditable: editable,
		Prepopulated: a.ExpandPrepopulated(layout.Prepopulated),
	}
}

// ExpandFields replaces each translated base field by its localized fields in language order.
func (a *ModelAdmin) ExpandFields(fields []string) []string {
	if fields == nil {
		return nil
	}

	expanded := make([]string, 0, len(fields))
	for _, name := range fields {
		if a.opts.HasField(name) {
			expanded = append(expanded, a.opts.LocalizedFieldNames(name)...)
			continue
		}
		expanded = append(expanded, name)
	}
	return expanded
}

// ExpandFieldsets expands explicit fieldsets in place. Without fieldsets a default layout is
// built: one untitled fieldset of the editable untranslated fields followed by one fieldset
// per translated field, labelled with its verbose name.
func (a *ModelAdmin) ExpandFieldsets(ctx context.Context, fieldsets []Fieldset) []Fieldset {
	if len(fieldsets) > 0 {
		expanded := make([]Fieldset, 0, len(fieldsets))
		for _, fs := range fieldsets {
			expanded = append(expanded, Fieldset{
				Name:    fs.Name,
				Fields:  a.ExpandFields(fs.Fields),
				Classes: slices.Clone(fs.Classes),
			})
		}
		return expanded
	}

	reverse := a.opts.ReverseMap()

	var plain []string
	for _, field := range a.def.Fields() {
		if a.opts.HasField(field.Name) || field.PrimaryKey || !field.Editable {
			continue
		}
		if _, ok := reverse[field.Name]; ok {
			continue
		}
		plain = append(plain, field.Name)
	}

	generated := []Fieldset{{Name: "", Fields: plain}}
	for _, base := range a.opts.Fields() {
		generated = append(generated, Fieldset{
			Name:    a.LocalizedLabel(ctx, base),
			Fields:  a.opts.LocalizedFieldNames(base),
			Classes: []string{FieldsetClass},
		})
	}
	return generated
}

// ExpandListEditable expands the translated fields of editable, and replaces them at the
// same position in display so every editable column stays displayed.
func (a *ModelAdmin) ExpandListEditable(editable, display []string) ([]string, []string) {
	if len(editable) == 0 {
		return editable, display
	}

	newDisplay := slices.Clone(display)
	for _, name := range editable {
		if !a.opts.HasField(name) {
			continue
		}

		idx := slices.Index(newDisplay, name)
		if idx < 0 {
			continue
		}
		newDisplay = slices.Replace(newDisplay, idx, idx+1, a.opts.LocalizedFieldNames(name)...)
	}
	return a.ExpandFields(editable), newDisplay
}

// ExpandPrepopulated points every field prepopulated from a translated field at the first
// localized field of that source instead.
func (a *ModelAdmin) ExpandPrepopulated(prepopulated map[string][]string) map[string][]string {
	if prepopulated == nil {
		return nil
	}

	expanded := make(map[string][]string, len(prepopulated))
	for target, sources := range prepopulated {
		if len(sources) > 0 && a.opts.HasField(sources[0]) {
			expanded[target] = a.opts.LocalizedFieldNames(sources[0])[:1]
			continue
		}
		expanded[target] = slices.Clone(sources)
	}
	return expanded
}

// LocalizedLabel returns the human readable label of a field in the language of ctx. Localized
// fields are labelled "<base label> [<lang>]".
func (a *ModelAdmin) LocalizedLabel(ctx context.Context, name string) string {
	if base, ok := a.opts.BaseField(name); ok {
		lang, _ := a.opts.Language(name)
		return fieldname.VerboseName(a.LocalizedLabel(ctx, base), lang)
	}

	label := name
	if field, ok := a.def.Field(name); ok && field.VerboseName != "" {
		label = field.VerboseName
	}

	if a.labels == nil {
		return label
	}
	return a.labels.Translate(ctx, label)
}

// SaveModel copies the default-language values into the base fields and saves inst.
// An empty default-language value clears the base field.
func (a *ModelAdmin) SaveModel(ctx context.Context, inst *model.Instance, saver Saver) error {
	err := a.registry.SyncDefault(inst)
	if err != nil {
		return err
	}

	util.Log(ctx).WithField("model", a.def.ID()).Debug("SaveModel -- default language synced to base fields")
	return saver.Save(ctx, inst)
}

// Widget is the input rendering a form field.
type Widget struct {
	Type  string
	Attrs map[string]string
}

func (w Widget) clone() Widget {
	return Widget{Type: w.Type, Attrs: maps.Clone(w.Attrs)}
}

// FormField is an input on the edit form of a model.
type FormField struct {
	Name     string
	Label    string
	Required bool
	Blank    bool
	Editable bool
	Widget   Widget
}

// PatchForm patches every field of form, see PatchFormField.
func (a *ModelAdmin) PatchForm(form []FormField) []FormField {
	byName := make(map[string]FormField, len(form))
	for _, field := range form {
		byName[field.Name] = field
	}

	patched := make([]FormField, 0, len(form))
	for _, field := range form {
		patched = append(patched, a.PatchFormField(field, byName))
	}
	return patched
}

// PatchFormField adapts one field of an unpatched form. A translated base field becomes
// non-editable and optional. A localized field takes a copy of its base field's widget with
// the modeltranslation class; the default-language one is also marked as default and becomes
// required when the base field was.
func (a *ModelAdmin) PatchFormField(field FormField, form map[string]FormField) FormField {
	if a.opts.HasField(field.Name) {
		field.Editable = false
		if field.Required {
			field.Required = false
			field.Blank = true
		}
		return field
	}

	base, ok := a.opts.BaseField(field.Name)
	if !ok {
		return field
	}

	classes := []string{WidgetClass}
	if orig, found := form[base]; found {
		field.Widget = orig.Widget.clone()
		if a.isDefault(field.Name) && orig.Required {
			field.Required = true
			field.Blank = false
		}
	} else {
		field.Widget = field.Widget.clone()
	}

	if a.isDefault(field.Name) {
		classes = append(classes, DefaultWidgetClass)
	}

	if field.Widget.Attrs == nil {
		field.Widget.Attrs = map[string]string{}
	}
	field.Widget.Attrs["class"] = joinClasses(field.Widget.Attrs["class"], classes...)
	return field
}

func (a *ModelAdmin) isDefault(physical string) bool {
	lang, ok := a.opts.Language(physical)
	return ok && a.registry.Resolver().IsDefault(lang)
}

func joinClasses(existing string, classes ...string) string {
	out := existing
	for _, class := range classes {
		if out != "" {
			out += " "
		}
		out += class
	}
	return out
}
