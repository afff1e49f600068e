// Package discovery populates a registry at startup from named translation units.
//
// A unit is either Go code registered in a Catalog or a translation.yaml manifest found
// under a manifest directory. Discover walks the configured unit names once per process;
// each unit is applied against a snapshot of the registry so a failing unit leaves no
// trace behind.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pitabwire/modeltranslation/registry"
)

// ErrUnitNotFound is returned by a Source that does not provide the named unit.
var ErrUnitNotFound = errors.New("translation unit not found")

// Unit registers the translated models of one application.
type Unit interface {
	Register(ctx context.Context, reg *registry.Registry) error
}

// UnitFunc adapts a function to a Unit.
type UnitFunc func(ctx context.Context, reg *registry.Registry) error

func (f UnitFunc) Register(ctx context.Context, reg *registry.Registry) error {
	return f(ctx, reg)
}

// Source finds units by name.
type Source interface {
	Lookup(name string) (Unit, error)
}

// Catalog is a Source of units compiled into the binary.
type Catalog struct {
	mu    sync.RWMutex
	units map[string]Unit
}

func NewCatalog() *Catalog {
	return &Catalog{units: map[string]Unit{}}
}

// Add makes unit available under name, replacing any unit already known by that name.
func (c *Catalog) Add(name string, unit Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[name] = unit
}

func (c *Catalog) Lookup(name string) (Unit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	unit, ok := c.units[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
	}
	return unit, nil
}

// Names lists the catalogued unit names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.units))
	for name := range c.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sources consults each source in order and returns the first unit found.
type Sources []Source

func (s Sources) Lookup(name string) (Unit, error) {
	for _, src := range s {
		unit, err := src.Lookup(name)
		if err == nil {
			return unit, nil
		}
		if !errors.Is(err, ErrUnitNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
}
