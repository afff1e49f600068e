package model

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm/schema"
)

// Schema is the model schema system translation patches fields into.
type Schema interface {
	Definition(modelID string) (*Definition, error)
	GetField(modelID, name string) (FieldDescriptor, error)
	ListLocalFields(modelID string) ([]string, error)
	AddField(modelID string, field FieldDescriptor) error
	RemoveField(modelID, name string) error
	InstallAccessor(modelID, field string, accessor Accessor) error
	RemoveAccessor(modelID, field string) error
}

// Catalog is an in-memory Schema. Models are defined explicitly or parsed from gorm annotated structs.
type Catalog struct {
	mu          sync.RWMutex
	definitions map[string]*Definition

	namer      schema.Namer
	parseCache *sync.Map
}

var _ Schema = (*Catalog)(nil)

func NewCatalog() *Catalog {
	return &Catalog{
		definitions: map[string]*Definition{},
		namer:       schema.NamingStrategy{},
		parseCache:  &sync.Map{},
	}
}

// Define adds a model made of the supplied fields stored in table.
func (c *Catalog) Define(modelID, table string, fields ...FieldDescriptor) (*Definition, error) {
	def, err := newDefinition(modelID, table, fields)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.definitions[modelID]; ok {
		return nil, fmt.Errorf("model %s already defined", modelID)
	}
	c.definitions[modelID] = def
	return def, nil
}

// Undefine drops a model added by Define.
func (c *Catalog) Undefine(modelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.definitions[modelID]; !ok {
		return fmt.Errorf("%w: %s", ErrModelNotDefined, modelID)
	}
	delete(c.definitions, modelID)
	return nil
}

// DefineStruct parses a gorm model, e.g. &Article{}, into a definition. Field names are the
// column names gorm derives; the `verbose` struct tag overrides the human readable name.
func (c *Catalog) DefineStruct(modelID string, value any) (*Definition, error) {
	parsed, err := schema.Parse(value, c.parseCache, c.namer)
	if err != nil {
		return nil, fmt.Errorf("parse model %s: %w", modelID, err)
	}

	var fields []FieldDescriptor
	for _, f := range parsed.Fields {
		if f.DBName == "" || f.IgnoreMigration {
			continue
		}

		verboseName := f.Tag.Get("verbose")
		if verboseName == "" {
			verboseName = f.Name
		}

		fields = append(fields, FieldDescriptor{
			Name:        f.DBName,
			Column:      f.DBName,
			DataType:    f.DataType,
			Size:        f.Size,
			Nullable:    !f.NotNull && !f.PrimaryKey,
			Blank:       !f.NotNull && !f.PrimaryKey,
			Editable:    !f.PrimaryKey && f.Creatable && f.Updatable,
			PrimaryKey:  f.PrimaryKey,
			VerboseName: verboseName,
		})
	}

	return c.Define(modelID, parsed.Table, fields...)
}

// Models lists the defined model ids in sorted order.
func (c *Catalog) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.definitions))
	for id := range c.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) Definition(modelID string) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.definitions[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotDefined, modelID)
	}
	return def, nil
}

func (c *Catalog) GetField(modelID, name string) (FieldDescriptor, error) {
	def, err := c.Definition(modelID)
	if err != nil {
		return FieldDescriptor{}, err
	}

	field, ok := def.Field(name)
	if !ok {
		return FieldDescriptor{}, fmt.Errorf("model %s field %s: %w", modelID, name, ErrFieldNotFound)
	}
	return field, nil
}

func (c *Catalog) ListLocalFields(modelID string) ([]string, error) {
	def, err := c.Definition(modelID)
	if err != nil {
		return nil, err
	}
	return def.LocalFields(), nil
}

func (c *Catalog) AddField(modelID string, field FieldDescriptor) error {
	def, err := c.Definition(modelID)
	if err != nil {
		return err
	}

	def.mu.Lock()
	defer def.mu.Unlock()
	return def.addField(field)
}

func (c *Catalog) RemoveField(modelID, name string) error {
	def, err := c.Definition(modelID)
	if err != nil {
		return err
	}

	def.mu.Lock()
	defer def.mu.Unlock()
	return def.removeField(name)
}

func (c *Catalog) InstallAccessor(modelID, field string, accessor Accessor) error {
	def, err := c.Definition(modelID)
	if err != nil {
		return err
	}

	def.mu.Lock()
	defer def.mu.Unlock()

	if def.indexOf(field) < 0 {
		return fmt.Errorf("model %s field %s: %w", modelID, field, ErrFieldNotFound)
	}
	def.accessors[field] = accessor
	return nil
}

func (c *Catalog) RemoveAccessor(modelID, field string) error {
	def, err := c.Definition(modelID)
	if err != nil {
		return err
	}

	def.mu.Lock()
	defer def.mu.Unlock()

	delete(def.accessors, field)
	return nil
}
