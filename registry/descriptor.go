package registry

import (
	"context"

	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
)

// Descriptor is the accessor installed on a translated base field. Reads and writes of the
// base field are redirected to the physical field of the active language.
type Descriptor struct {
	opts     *TranslationOptions
	base     string
	resolver *localization.Resolver
}

var _ model.Accessor = (*Descriptor)(nil)

func NewDescriptor(opts *TranslationOptions, base string, resolver *localization.Resolver) *Descriptor {
	return &Descriptor{opts: opts, base: base, resolver: resolver}
}

func (d *Descriptor) Field() string {
	return d.base
}

// Get returns the value stored for the active language. An empty value is returned as is,
// there is no fallback to the default language.
func (d *Descriptor) Get(ctx context.Context, inst *model.Instance) any {
	physical, ok := d.opts.LocalizedField(d.base, d.resolver.Resolve(ctx))
	if !ok {
		return inst.Raw(d.base)
	}
	return inst.Raw(physical)
}

// Set stores value for the active language. For the default language the base field's own
// slot is written too, so hooks and persistence reading it observe the same value.
func (d *Descriptor) Set(ctx context.Context, inst *model.Instance, value any) {
	lang := d.resolver.Resolve(ctx)

	physical, ok := d.opts.LocalizedField(d.base, lang)
	if !ok {
		inst.SetRaw(d.base, value)
		return
	}

	inst.SetRaw(physical, value)
	if d.resolver.IsDefault(lang) {
		inst.SetRaw(d.base, value)
	}
}
