package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/util"

	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
)

// ManifestFile is the file name looked up inside every unit directory.
const ManifestFile = "translation.yaml"

// Manifest is the content of a translation.yaml file.
//
//	models:
//	  - model: blog.Article
//	    table: articles
//	    fields: [title, body]
//	    columns:
//	      - {name: id, type: int, primary_key: true}
//	      - {name: title, type: string, size: 255}
//	      - {name: body, type: string, nullable: true}
//
// Columns are only needed when the model is not otherwise defined in the schema.
type Manifest struct {
	Models []ManifestModel `yaml:"models"`
}

type ManifestModel struct {
	Model   string           `yaml:"model"`
	Table   string           `yaml:"table"`
	Fields  []string         `yaml:"fields"`
	Columns []ManifestColumn `yaml:"columns"`
}

type ManifestColumn struct {
	Name        string `yaml:"name"`
	Column      string `yaml:"column"`
	Type        string `yaml:"type"`
	Size        int    `yaml:"size"`
	Nullable    bool   `yaml:"nullable"`
	Blank       bool   `yaml:"blank"`
	PrimaryKey  bool   `yaml:"primary_key"`
	VerboseName string `yaml:"verbose_name"`
}

func (c ManifestColumn) descriptor() model.FieldDescriptor {
	verboseName := c.VerboseName
	if verboseName == "" {
		verboseName = c.Name
	}

	dataType := schema.DataType(c.Type)
	if dataType == "" {
		dataType = schema.String
	}

	size := c.Size
	if size == 0 && (dataType == schema.Int || dataType == schema.Uint) {
		size = 64
	}

	return model.FieldDescriptor{
		Name:        c.Name,
		Column:      c.Column,
		DataType:    dataType,
		Size:        size,
		Nullable:    c.Nullable && !c.PrimaryKey,
		Blank:       (c.Blank || c.Nullable) && !c.PrimaryKey,
		Editable:    !c.PrimaryKey,
		PrimaryKey:  c.PrimaryKey,
		VerboseName: verboseName,
	}
}

// Definer is implemented by schemas that accept new model definitions, such as model.Catalog.
type Definer interface {
	Define(modelID, table string, fields ...model.FieldDescriptor) (*model.Definition, error)
	Undefine(modelID string) error
}

// ParseManifest decodes a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}

	for i, m := range manifest.Models {
		if m.Model == "" {
			return nil, fmt.Errorf("models[%d]: model id is required", i)
		}
		if len(m.Fields) == 0 {
			return nil, fmt.Errorf("models[%d] %s: no fields to translate", i, m.Model)
		}
	}
	return &manifest, nil
}

// Register defines the models the manifest describes columns for, then registers every model.
// On failure the models it registered are unregistered and the models it defined are dropped.
func (m *Manifest) Register(ctx context.Context, reg *registry.Registry) (err error) {
	var defined, registered []string
	defer func() {
		if err == nil {
			return
		}
		for i := len(registered) - 1; i >= 0; i-- {
			if undoErr := reg.Unregister(ctx, registered[i]); undoErr != nil {
				util.Log(ctx).WithError(undoErr).WithField("model", registered[i]).
					Warn("Register -- could not unregister manifest model")
			}
		}
		definer, _ := reg.Schema().(Definer)
		for i := len(defined) - 1; i >= 0; i-- {
			if undoErr := definer.Undefine(defined[i]); undoErr != nil {
				util.Log(ctx).WithError(undoErr).WithField("model", defined[i]).
					Warn("Register -- could not drop manifest model")
			}
		}
	}()

	for _, entry := range m.Models {
		if len(entry.Columns) > 0 {
			created, defineErr := defineModel(reg.Schema(), entry)
			if defineErr != nil {
				return defineErr
			}
			if created {
				defined = append(defined, entry.Model)
			}
		}

		if err = reg.Register(ctx, entry.Model, entry.Fields...); err != nil {
			return err
		}
		registered = append(registered, entry.Model)
	}
	return nil
}

func defineModel(modelSchema model.Schema, entry ManifestModel) (bool, error) {
	if _, err := modelSchema.Definition(entry.Model); err == nil {
		return false, nil
	}

	definer, ok := modelSchema.(Definer)
	if !ok {
		return false, fmt.Errorf("model %s: schema does not accept definitions", entry.Model)
	}

	fields := make([]model.FieldDescriptor, 0, len(entry.Columns))
	for _, column := range entry.Columns {
		fields = append(fields, column.descriptor())
	}

	table := entry.Table
	if table == "" {
		name := entry.Model[strings.LastIndex(entry.Model, ".")+1:]
		table = schema.NamingStrategy{}.TableName(name)
	}

	if _, err := definer.Define(entry.Model, table, fields...); err != nil {
		return false, err
	}
	return true, nil
}

// ManifestSource finds units as <dir>/<unit>/translation.yaml.
type ManifestSource struct {
	fsys fs.FS
}

func NewManifestSource(dir string) *ManifestSource {
	return &ManifestSource{fsys: os.DirFS(dir)}
}

// NewManifestSourceFS reads manifests from fsys, which is handy for embedded manifests.
func NewManifestSourceFS(fsys fs.FS) *ManifestSource {
	return &ManifestSource{fsys: fsys}
}

func (s *ManifestSource) Lookup(name string) (Unit, error) {
	data, err := fs.ReadFile(s.fsys, filepath.ToSlash(filepath.Join(name, ManifestFile)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
		}
		return nil, fmt.Errorf("read manifest of %s: %w", name, err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest of %s: %w", name, err)
	}
	return manifest, nil
}

// Names lists the directories holding a manifest, in lexical order.
func (s *ManifestSource) Names() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, statErr := fs.Stat(s.fsys, entry.Name()+"/"+ManifestFile); statErr == nil {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
