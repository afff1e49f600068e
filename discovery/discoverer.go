package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/pitabwire/util"

	"github.com/pitabwire/modeltranslation/registry"
)

// State is the progress of discovery in a process.
type State int32

const (
	NotStarted State = iota
	InProgress
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ImportFailure reports a unit that exists but could not be applied.
type ImportFailure struct {
	Unit string
	Err  error
}

func (e *ImportFailure) Error() string {
	return fmt.Sprintf("translation unit %s: %v", e.Unit, e.Err)
}

func (e *ImportFailure) Unwrap() error {
	return e.Err
}

// Result is the outcome of one unit. Err is nil on success, wraps ErrUnitNotFound when the
// unit does not exist and is an *ImportFailure otherwise.
type Result struct {
	Unit   string
	Models []string
	Err    error
}

func (r Result) NotFound() bool {
	return errors.Is(r.Err, ErrUnitNotFound)
}

type Option func(*Discoverer)

// WithDebug logs the registered models once discovery completes.
func WithDebug(debug bool) Option {
	return func(d *Discoverer) {
		d.debug = debug
	}
}

// WithEnabled turns discovery into a no-op when false.
func WithEnabled(enabled bool) Option {
	return func(d *Discoverer) {
		d.enabled = enabled
	}
}

// Discoverer runs discovery at most once per instance.
type Discoverer struct {
	registry *registry.Registry
	source   Source
	debug    bool
	enabled  bool

	state atomic.Int32
}

func NewDiscoverer(reg *registry.Registry, source Source, opts ...Option) *Discoverer {
	d := &Discoverer{
		registry: reg,
		source:   source,
		enabled:  true,
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Discoverer) State() State {
	return State(d.state.Load())
}

// Discover applies the named units in order. Only the first call does any work: calls made
// while it runs or after it finished return nil results and no error. Units that do not
// exist are reported in the results but are not errors. A failing unit is rolled back and
// its *ImportFailure is returned, joined with those of other failing units; the remaining
// units are still applied.
func (d *Discoverer) Discover(ctx context.Context, names ...string) ([]Result, error) {
	if !d.state.CompareAndSwap(int32(NotStarted), int32(InProgress)) {
		return nil, nil
	}
	defer d.state.Store(int32(Done))

	log := util.Log(ctx)
	if !d.enabled {
		log.Debug("Discover -- translation registrations disabled")
		return nil, nil
	}

	results := make([]Result, 0, len(names))
	var errs []error
	for _, name := range names {
		result := d.discoverUnit(ctx, name)
		results = append(results, result)

		switch {
		case result.Err == nil:
		case result.NotFound():
			log.WithField("unit", name).Debug("Discover -- no translation unit")
		default:
			log.WithError(result.Err).WithField("unit", name).Error("Discover -- translation unit failed")
			errs = append(errs, result.Err)
		}
	}

	if d.debug {
		models := d.registry.Models()
		log.WithField("count", len(models)).
			WithField("models", models).
			Info("Discover -- registered models for translation")
	}

	return results, errors.Join(errs...)
}

func (d *Discoverer) discoverUnit(ctx context.Context, name string) (result Result) {
	result.Unit = name

	unit, err := d.source.Lookup(name)
	if err != nil {
		if errors.Is(err, ErrUnitNotFound) {
			result.Err = err
		} else {
			result.Err = &ImportFailure{Unit: name, Err: err}
		}
		return result
	}

	before := d.registry.Snapshot()

	defer func() {
		if r := recover(); r != nil {
			result.Err = &ImportFailure{Unit: name, Err: fmt.Errorf("panic: %v", r)}
		}

		if result.Err == nil {
			return
		}

		if restoreErr := d.registry.Restore(ctx, before); restoreErr != nil {
			result.Err = &ImportFailure{Unit: name, Err: errors.Join(result.Err, restoreErr)}
		}
	}()

	if err = unit.Register(ctx, d.registry); err != nil {
		result.Err = &ImportFailure{Unit: name, Err: err}
		return result
	}

	for _, id := range d.registry.Models() {
		if _, ok := before[id]; !ok {
			result.Models = append(result.Models, id)
		}
	}
	return result
}
