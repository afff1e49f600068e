// Package backfill copies the value of every translated field into its default-language column
// for rows where that column is still empty. It is run once after translation columns are added.
package backfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/registry"
	"github.com/pitabwire/modeltranslation/workerpool"
)

var ErrNoDatabase = errors.New("backfill: no writable database configured")

// Result is the outcome for one model.
type Result struct {
	ModelID string
	// Rows maps each base field to the number of rows updated.
	Rows map[string]int64
	Err  error
}

// Updater fills default-language columns, one worker pool job per registered model.
type Updater struct {
	registry *registry.Registry
	pool     pool.Pool
	workers  workerpool.WorkerPool
}

func NewUpdater(reg *registry.Registry, dbPool pool.Pool, workers workerpool.WorkerPool) *Updater {
	return &Updater{registry: reg, pool: dbPool, workers: workers}
}

// Update processes every registered model, or only the listed ones. Results follow the order
// of the models; the returned error joins the failures.
func (u *Updater) Update(ctx context.Context, modelIDs ...string) ([]Result, error) {
	if u.pool.DB(ctx, false) == nil {
		return nil, ErrNoDatabase
	}

	if len(modelIDs) == 0 {
		modelIDs = u.registry.Models()
	}

	jobs := make([]*workerpool.Job[Result], 0, len(modelIDs))
	for _, modelID := range modelIDs {
		job := workerpool.NewJobWithBuffer(func(ctx context.Context, job *workerpool.Job[Result]) error {
			return job.WriteResult(ctx, u.updateModel(ctx, modelID))
		}, 1)

		if err := workerpool.Submit(ctx, u.workers, job); err != nil {
			return nil, fmt.Errorf("submit backfill of %s: %w", modelID, err)
		}
		jobs = append(jobs, job)
	}

	results := make([]Result, 0, len(jobs))
	var errs []error
	for i, job := range jobs {
		result := Result{ModelID: modelIDs[i]}
		err := workerpool.ConsumeResultStream(ctx, job, func(r Result) { result = r })
		if err != nil {
			result.Err = err
		}
		if result.Err != nil {
			errs = append(errs, result.Err)
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

func (u *Updater) updateModel(ctx context.Context, modelID string) Result {
	result := Result{ModelID: modelID, Rows: map[string]int64{}}
	log := util.Log(ctx).WithField("model", modelID)

	opts, err := u.registry.GetOptions(modelID)
	if err != nil {
		result.Err = err
		return result
	}

	def, err := u.registry.Schema().Definition(modelID)
	if err != nil {
		result.Err = err
		return result
	}

	defaultLanguage := u.registry.Resolver().Default()
	db := u.pool.DB(ctx, false)

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, base := range opts.Fields() {
			baseField, ok := def.Field(base)
			if !ok {
				return fmt.Errorf("model %s has no field %s", modelID, base)
			}

			physical, _ := opts.LocalizedField(base, defaultLanguage)
			localized, ok := def.Field(physical)
			if !ok {
				return fmt.Errorf("model %s has no field %s", modelID, physical)
			}

			target := clause.Column{Name: localized.ColumnName()}
			empty := clause.Expression(clause.Eq{Column: target, Value: nil})
			if localized.DataType == schema.String {
				empty = clause.Or(empty, clause.Eq{Column: target, Value: ""})
			}

			res := tx.Table(def.Table()).
				Where(empty).
				UpdateColumn(localized.ColumnName(), gorm.Expr("?", clause.Column{Name: baseField.ColumnName()}))
			if res.Error != nil {
				return fmt.Errorf("update %s.%s: %w", def.Table(), localized.ColumnName(), res.Error)
			}

			result.Rows[base] = res.RowsAffected
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("updateModel -- backfill failed")
		result.Rows = map[string]int64{}
		result.Err = err
		return result
	}

	log.WithField("rows", result.Rows).Debug("updateModel -- default language columns filled")
	return result
}
