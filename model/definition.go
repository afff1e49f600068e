// Package model is the model schema layer translated fields are attached to.
//
// A Definition describes the ordered fields of a model and the storage table
// they live in. Fields can be added and removed after definition, and each
// field may carry an Accessor that intercepts reads and writes made through
// Instance.Get and Instance.Set.
package model

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gorm.io/gorm/schema"
)

var (
	ErrModelNotDefined = errors.New("model not defined")
	ErrFieldNotFound   = errors.New("field not found")
	ErrFieldExists     = errors.New("field already exists")
)

// FieldDescriptor describes one storage field of a model.
type FieldDescriptor struct {
	Name        string
	Column      string
	DataType    schema.DataType
	Size        int
	Nullable    bool
	Blank       bool
	Editable    bool
	PrimaryKey  bool
	VerboseName string

	// Origin and Language are set on the per-language fields added for a translated field.
	Origin   string
	Language string
}

// ColumnName is the storage column backing the field.
func (f FieldDescriptor) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Accessor intercepts attribute access on an Instance for a single field.
type Accessor interface {
	Get(ctx context.Context, inst *Instance) any
	Set(ctx context.Context, inst *Instance, value any)
}

// Definition is the schema of a model.
type Definition struct {
	id    string
	table string

	mu        sync.RWMutex
	fields    []FieldDescriptor
	accessors map[string]Accessor
}

func newDefinition(id, table string, fields []FieldDescriptor) (*Definition, error) {
	def := &Definition{
		id:        id,
		table:     table,
		accessors: map[string]Accessor{},
	}

	for _, field := range fields {
		if err := def.addField(field); err != nil {
			return nil, err
		}
	}
	return def, nil
}

func (d *Definition) ID() string {
	return d.id
}

func (d *Definition) Table() string {
	return d.table
}

// Field returns the named field descriptor.
func (d *Definition) Field(name string) (FieldDescriptor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx := d.indexOf(name)
	if idx < 0 {
		return FieldDescriptor{}, false
	}
	return d.fields[idx], true
}

// Fields returns a copy of the field descriptors in declaration order.
func (d *Definition) Fields() []FieldDescriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return slices.Clone(d.fields)
}

// LocalFields returns the field names in declaration order.
func (d *Definition) LocalFields() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.fields))
	for _, field := range d.fields {
		names = append(names, field.Name)
	}
	return names
}

// PrimaryKey returns the primary key field, if the model has one.
func (d *Definition) PrimaryKey() (FieldDescriptor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, field := range d.fields {
		if field.PrimaryKey {
			return field, true
		}
	}
	return FieldDescriptor{}, false
}

// Accessor returns the accessor installed on a field.
func (d *Definition) Accessor(name string) (Accessor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	accessor, ok := d.accessors[name]
	return accessor, ok
}

// New creates an empty instance of the model.
func (d *Definition) New() *Instance {
	return &Instance{def: d, values: map[string]any{}}
}

func (d *Definition) indexOf(name string) int {
	return slices.IndexFunc(d.fields, func(f FieldDescriptor) bool { return f.Name == name })
}

func (d *Definition) addField(field FieldDescriptor) error {
	if field.Name == "" {
		return fmt.Errorf("model %s: field name is required", d.id)
	}
	if d.indexOf(field.Name) >= 0 {
		return fmt.Errorf("model %s field %s: %w", d.id, field.Name, ErrFieldExists)
	}

	d.fields = append(d.fields, field)
	return nil
}

func (d *Definition) removeField(name string) error {
	idx := d.indexOf(name)
	if idx < 0 {
		return fmt.Errorf("model %s field %s: %w", d.id, name, ErrFieldNotFound)
	}

	d.fields = slices.Delete(d.fields, idx, idx+1)
	delete(d.accessors, name)
	return nil
}
