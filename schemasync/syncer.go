package schemasync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/pitabwire/util"
	"github.com/rs/xid"

	"github.com/pitabwire/modeltranslation/datastore/migration"
	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
)

var (
	// ErrSyncInProgress is returned when another sync runs in this process.
	ErrSyncInProgress = errors.New("schema sync already in progress")
	ErrNoDatabase     = errors.New("schema sync: no writable database configured")
)

// Confirmer is asked before the statements planned for a model are executed.
type Confirmer interface {
	Confirm(ctx context.Context, plan ModelPlan) (bool, error)
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(ctx context.Context, plan ModelPlan) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, plan ModelPlan) (bool, error) {
	return f(ctx, plan)
}

// NoInput confirms every plan.
var NoInput Confirmer = ConfirmFunc(func(context.Context, ModelPlan) (bool, error) { return true, nil })

// ModelPlan is what sync found and intends to do for one model.
type ModelPlan struct {
	ModelID      string
	Table        string
	TableMissing bool
	Drift        []Drift
	Statements   []Statement
	Executed     bool
}

// Report is the outcome of Inspect or Sync.
type Report struct {
	Models []ModelPlan
}

// InSync reports whether no model had missing columns.
func (r *Report) InSync() bool {
	for _, m := range r.Models {
		if len(m.Drift) > 0 {
			return false
		}
	}
	return true
}

// Statements lists every planned statement in execution order.
func (r *Report) Statements() []Statement {
	var all []Statement
	for _, m := range r.Models {
		all = append(all, m.Statements...)
	}
	return all
}

// Syncer adds missing translation columns. Schema changes must not run concurrently; a second
// Sync in the same process fails with ErrSyncInProgress.
type Syncer struct {
	registry *registry.Registry
	pool     pool.Pool

	running sync.Mutex
}

func NewSyncer(reg *registry.Registry, dbPool pool.Pool) *Syncer {
	return &Syncer{registry: reg, pool: dbPool}
}

// Inspect detects drift and plans the statements without changing anything.
func (s *Syncer) Inspect(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	return s.inspect(ctx)
}

// Sync detects drift, asks confirm for every model with missing columns and records the
// accepted statements in the migration journal before applying them.
func (s *Syncer) Sync(ctx context.Context, confirm Confirmer) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.running.Unlock()

	report, err := s.inspect(ctx)
	if err != nil {
		return nil, err
	}

	runID := xid.New().String()
	var patches []*migration.Patch
	var accepted []int
	for i := range report.Models {
		plan := &report.Models[i]
		if len(plan.Statements) == 0 {
			continue
		}

		ok, confirmErr := confirm.Confirm(ctx, *plan)
		if confirmErr != nil {
			return report, confirmErr
		}
		if !ok {
			util.Log(ctx).WithField("model", plan.ModelID).Info("Sync -- statements not confirmed, skipping")
			continue
		}

		for _, stmt := range plan.Statements {
			patches = append(patches, &migration.Patch{
				Name:        fmt.Sprintf("translation_%s_%04d_%s", runID, len(patches), plan.Table),
				Patch:       stmt.SQL,
				RevertPatch: stmt.Revert,
			})
		}
		accepted = append(accepted, i)
	}

	if len(patches) == 0 {
		return report, nil
	}

	if err = s.pool.SaveMigration(ctx, patches...); err != nil {
		return report, err
	}
	if err = s.pool.Migrate(ctx, ""); err != nil {
		return report, err
	}

	for _, i := range accepted {
		report.Models[i].Executed = true
	}

	util.Log(ctx).WithField("statements", len(patches)).Info("Sync -- translation columns added")
	return report, nil
}

func (s *Syncer) inspect(ctx context.Context) (*Report, error) {
	db := s.pool.DB(ctx, false)
	if db == nil {
		return nil, ErrNoDatabase
	}

	planner := NewPlanner(db.Dialector)
	report := &Report{}

	for _, modelID := range s.registry.Models() {
		opts, err := s.registry.GetOptions(modelID)
		if err != nil {
			return nil, err
		}

		def, err := s.registry.Schema().Definition(modelID)
		if err != nil {
			return nil, err
		}

		plan := ModelPlan{ModelID: modelID, Table: def.Table()}

		if !db.Migrator().HasTable(def.Table()) {
			util.Log(ctx).WithField("model", modelID).
				WithField("table", def.Table()).
				Warn("inspect -- table does not exist, skipping")
			plan.TableMissing = true
			report.Models = append(report.Models, plan)
			continue
		}

		columnTypes, err := db.Migrator().ColumnTypes(def.Table())
		if err != nil {
			return nil, fmt.Errorf("read columns of %s: %w", def.Table(), err)
		}

		columns := make([]string, 0, len(columnTypes))
		for _, ct := range columnTypes {
			columns = append(columns, ct.Name())
		}

		existing := make([]string, 0, len(columns))
		for _, field := range def.Fields() {
			if slices.Contains(columns, field.ColumnName()) {
				existing = append(existing, field.Name)
			}
		}

		localFields := def.LocalFields()
		for _, drift := range Detect(opts, existing, s.registry.Resolver().Languages()) {
			if !slices.Contains(localFields, drift.BaseField) {
				continue
			}

			statements, planErr := s.planDrift(planner, def, opts, drift)
			if planErr != nil {
				return nil, planErr
			}

			plan.Drift = append(plan.Drift, drift)
			plan.Statements = append(plan.Statements, statements...)
		}

		report.Models = append(report.Models, plan)
	}

	return report, nil
}

func (s *Syncer) planDrift(
	planner *Planner,
	def *model.Definition,
	opts *registry.TranslationOptions,
	drift Drift,
) ([]Statement, error) {
	base, ok := def.Field(drift.BaseField)
	if !ok {
		return nil, fmt.Errorf("model %s field %s: %w", def.ID(), drift.BaseField, model.ErrFieldNotFound)
	}

	localized := make([]model.FieldDescriptor, 0, len(drift.MissingLanguages))
	for _, lang := range drift.MissingLanguages {
		physical, _ := opts.LocalizedField(drift.BaseField, lang)
		field, found := def.Field(physical)
		if !found {
			return nil, fmt.Errorf("model %s field %s: %w", def.ID(), physical, model.ErrFieldNotFound)
		}
		localized = append(localized, field)
	}

	return planner.Plan(def.Table(), base, localized), nil
}
