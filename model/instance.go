package model

import (
	"context"
	"maps"
)

// Instance holds the field values of one model row. It is not safe for concurrent mutation.
type Instance struct {
	def    *Definition
	values map[string]any
}

func (i *Instance) Definition() *Definition {
	return i.def
}

// Get reads a field, going through its accessor when one is installed.
func (i *Instance) Get(ctx context.Context, name string) any {
	if accessor, ok := i.def.Accessor(name); ok {
		return accessor.Get(ctx, i)
	}
	return i.Raw(name)
}

// Set writes a field, going through its accessor when one is installed.
func (i *Instance) Set(ctx context.Context, name string, value any) {
	if accessor, ok := i.def.Accessor(name); ok {
		accessor.Set(ctx, i, value)
		return
	}
	i.SetRaw(name, value)
}

// Raw reads the value stored for a field, bypassing any accessor.
func (i *Instance) Raw(name string) any {
	return i.values[name]
}

// SetRaw stores the value of a field, bypassing any accessor.
func (i *Instance) SetRaw(name string, value any) {
	i.values[name] = value
}

// IsSet reports whether a value was ever stored for the field.
func (i *Instance) IsSet(name string) bool {
	_, ok := i.values[name]
	return ok
}

// Values returns a copy of the raw values keyed by field name.
func (i *Instance) Values() map[string]any {
	return maps.Clone(i.values)
}

// Columns renders the instance as a row keyed by column name, nil for unset fields.
func (i *Instance) Columns() map[string]any {
	fields := i.def.Fields()
	row := make(map[string]any, len(fields))
	for _, field := range fields {
		row[field.ColumnName()] = i.values[field.Name]
	}
	return row
}

// Load fills the raw values from a row keyed by column name. Unknown columns are ignored.
func (i *Instance) Load(row map[string]any) {
	for _, field := range i.def.Fields() {
		if value, ok := row[field.ColumnName()]; ok {
			i.values[field.Name] = value
		}
	}
}

// IsEmpty reports whether v is unset for translation purposes: nil, a nil pointer or an empty string.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case *string:
		return val == nil || *val == ""
	case []byte:
		return len(val) == 0
	default:
		return false
	}
}
