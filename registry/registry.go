// Package registry associates models with the fields translated on them and patches the
// model schema accordingly: one physical field per configured language is added for every
// translated field, and a Descriptor is installed on the original field.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/pitabwire/util"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/modeltranslation/fieldname"
	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
)

var (
	ErrAlreadyRegistered    = errors.New("model already registered for translation")
	ErrNotRegistered        = errors.New("model not registered for translation")
	ErrFieldDoesNotExist    = errors.New("field does not exist")
	ErrFieldNotTranslatable = errors.New("field can not be translated")
)

// Option configures a Registry.
type Option func(*Registry)

// WithTranslatableTypes allows fields of the given data types to be translated besides strings.
func WithTranslatableTypes(types ...schema.DataType) Option {
	return func(r *Registry) {
		for _, t := range types {
			r.translatable[t] = true
		}
	}
}

// Snapshot is a point in time copy of the registered models.
type Snapshot map[string]*TranslationOptions

// Registry is the process wide table of translated models.
type Registry struct {
	schema       model.Schema
	resolver     *localization.Resolver
	translatable map[schema.DataType]bool

	mu       sync.RWMutex
	registry map[string]*TranslationOptions
}

func New(modelSchema model.Schema, resolver *localization.Resolver, opts ...Option) *Registry {
	r := &Registry{
		schema:       modelSchema,
		resolver:     resolver,
		translatable: map[schema.DataType]bool{schema.String: true},
		registry:     map[string]*TranslationOptions{},
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Schema() model.Schema {
	return r.schema
}

func (r *Registry) Resolver() *localization.Resolver {
	return r.resolver
}

// Register translates fields of modelID. It fails when the model is already registered or
// when a field is not a translatable field of the model; a failed call changes nothing.
func (r *Registry) Register(ctx context.Context, modelID string, fields ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.registry[modelID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, modelID)
	}

	baseFields := uniqueSorted(fields)
	for _, base := range baseFields {
		if err := r.checkTranslatable(modelID, base); err != nil {
			return err
		}
	}

	opts := newTranslationOptions(modelID, baseFields, r.resolver.Languages(), fieldname.Build)
	if err := r.install(opts); err != nil {
		return err
	}

	r.registry[modelID] = opts

	util.Log(ctx).WithField("model", modelID).
		WithField("fields", baseFields).
		Debug("Register -- model registered for translation")
	return nil
}

// Unregister removes the per-language fields and descriptors added by Register.
func (r *Registry) Unregister(ctx context.Context, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	opts, ok := r.registry[modelID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, modelID)
	}

	err := r.uninstall(opts)
	delete(r.registry, modelID)

	util.Log(ctx).WithField("model", modelID).Debug("Unregister -- model unregistered from translation")
	return err
}

func (r *Registry) GetOptions(modelID string) (*TranslationOptions, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts, ok := r.registry[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, modelID)
	}
	return opts, nil
}

func (r *Registry) IsRegistered(modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.registry[modelID]
	return ok
}

// Models returns the registered model ids in sorted order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := slices.Collect(maps.Keys(r.registry))
	sort.Strings(ids)
	return ids
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(r.registry)
}

// Restore brings the registry and the schema patches back to the state captured by snapshot.
func (r *Registry) Restore(ctx context.Context, snapshot Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, opts := range r.registry {
		if kept, ok := snapshot[id]; ok && kept == opts {
			continue
		}
		errs = append(errs, r.uninstall(opts))
		delete(r.registry, id)
	}

	for id, opts := range snapshot {
		if _, ok := r.registry[id]; ok {
			continue
		}
		if err := r.install(opts); err != nil {
			errs = append(errs, err)
			continue
		}
		r.registry[id] = opts
	}

	err := errors.Join(errs...)
	if err != nil {
		util.Log(ctx).WithError(err).Error("Restore -- registry could not be fully restored")
	}
	return err
}

// SyncDefault copies the default-language value of every translated field of inst into the
// base field's own slot. An unset default-language value clears the base field to the zero
// value of its type, nil for types without one.
func (r *Registry) SyncDefault(inst *model.Instance) error {
	return r.syncDefault(inst, true)
}

// SyncSetDefaults copies only the default-language values that are set and not nil, so rows
// whose default-language columns were never filled keep their base values.
func (r *Registry) SyncSetDefaults(inst *model.Instance) error {
	return r.syncDefault(inst, false)
}

func (r *Registry) syncDefault(inst *model.Instance, clearUnset bool) error {
	modelID := inst.Definition().ID()
	opts, err := r.GetOptions(modelID)
	if err != nil {
		return err
	}

	for _, base := range opts.fields {
		physical, ok := opts.LocalizedField(base, r.resolver.Default())
		if !ok {
			continue
		}

		value := inst.Raw(physical)
		if value == nil {
			if !clearUnset {
				continue
			}

			desc, fieldErr := r.schema.GetField(modelID, base)
			if fieldErr != nil {
				return fieldErr
			}
			value = zeroValue(desc.DataType)
		}
		inst.SetRaw(base, value)
	}
	return nil
}

func zeroValue(dataType schema.DataType) any {
	switch dataType {
	case schema.String:
		return ""
	case schema.Int:
		return int64(0)
	case schema.Uint:
		return uint64(0)
	case schema.Float:
		return float64(0)
	case schema.Bool:
		return false
	default:
		return nil
	}
}

func (r *Registry) checkTranslatable(modelID, base string) error {
	desc, err := r.schema.GetField(modelID, base)
	if err != nil {
		if errors.Is(err, model.ErrFieldNotFound) {
			return fmt.Errorf("%w: %s has no field %s", ErrFieldDoesNotExist, modelID, base)
		}
		return err
	}

	if desc.PrimaryKey || desc.Origin != "" {
		return fmt.Errorf("%w: %s.%s", ErrFieldNotTranslatable, modelID, base)
	}

	if !r.translatable[desc.DataType] {
		return fmt.Errorf("%w: %s.%s has type %q", ErrFieldNotTranslatable, modelID, base, desc.DataType)
	}
	return nil
}

// install adds the physical fields and descriptors of opts, removing what it added on failure.
func (r *Registry) install(opts *TranslationOptions) error {
	var added []string
	rollback := func(cause error) error {
		for _, base := range opts.fields {
			_ = r.schema.RemoveAccessor(opts.modelID, base)
		}
		for _, name := range slices.Backward(added) {
			_ = r.schema.RemoveField(opts.modelID, name)
		}
		return cause
	}

	for _, base := range opts.fields {
		desc, err := r.schema.GetField(opts.modelID, base)
		if err != nil {
			return rollback(err)
		}

		for _, lang := range r.resolver.Languages() {
			physical, _ := opts.LocalizedField(base, lang)
			err = r.schema.AddField(opts.modelID, localizedDescriptor(desc, physical, lang, r.resolver.IsDefault(lang)))
			if err != nil {
				return rollback(fmt.Errorf("add translation field %s.%s: %w", opts.modelID, physical, err))
			}
			added = append(added, physical)
		}
	}

	for _, base := range opts.fields {
		err := r.schema.InstallAccessor(opts.modelID, base, NewDescriptor(opts, base, r.resolver))
		if err != nil {
			return rollback(err)
		}
	}
	return nil
}

func (r *Registry) uninstall(opts *TranslationOptions) error {
	var errs []error
	for _, base := range opts.fields {
		if err := r.schema.RemoveAccessor(opts.modelID, base); err != nil {
			errs = append(errs, err)
		}
		for _, physical := range opts.localizedFields[base] {
			err := r.schema.RemoveField(opts.modelID, physical)
			if err != nil && !errors.Is(err, model.ErrFieldNotFound) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// localizedDescriptor derives the physical field of base for lang. The default language keeps
// the nullability of the original field, every other language is optional.
func localizedDescriptor(base model.FieldDescriptor, physical, lang string, isDefault bool) model.FieldDescriptor {
	desc := base
	desc.Name = physical
	desc.Column = fieldname.Build(base.ColumnName(), lang)
	desc.PrimaryKey = false
	desc.Editable = true
	desc.VerboseName = fieldname.VerboseName(base.VerboseName, lang)
	desc.Origin = base.Name
	desc.Language = lang

	if !isDefault {
		desc.Nullable = true
		desc.Blank = true
	}
	return desc
}

func uniqueSorted(fields []string) []string {
	out := slices.Clone(fields)
	sort.Strings(out)
	return slices.Compact(out)
}
