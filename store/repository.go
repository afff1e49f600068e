// Package store persists model instances, translated or not, through gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/util"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/modeltranslation/data"
	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrNoPrimaryKey     = errors.New("model has no primary key")
	ErrMissingKeyValue  = errors.New("primary key value is required")
	ErrInvalidColumn    = errors.New("invalid column name")
	ErrColumnsNotSynced = errors.New("translation columns missing from table, run sync")
)

// Repository reads and writes the rows of any model defined in the registry's schema.
type Repository interface {
	Pool() pool.Pool
	// Save inserts inst or updates the row with the same primary key. Translated models have
	// their set default-language values copied into the base fields first; base values of
	// rows not backfilled yet are kept.
	Save(ctx context.Context, inst *model.Instance) error
	Get(ctx context.Context, def *model.Definition, id any) (*model.Instance, error)
	GetAllBy(ctx context.Context, def *model.Definition, properties map[string]any, offset, limit int) ([]*model.Instance, error)
	Count(ctx context.Context, def *model.Definition) (int64, error)
	Delete(ctx context.Context, def *model.Definition, id any) error
}

type repository struct {
	dbPool   pool.Pool
	registry *registry.Registry
}

func NewRepository(dbPool pool.Pool, reg *registry.Registry) Repository {
	return &repository{dbPool: dbPool, registry: reg}
}

func (r *repository) Pool() pool.Pool {
	return r.dbPool
}

func (r *repository) Save(ctx context.Context, inst *model.Instance) error {
	def := inst.Definition()

	if r.registry != nil && r.registry.IsRegistered(def.ID()) {
		if err := r.registry.SyncSetDefaults(inst); err != nil {
			return err
		}
	}

	pk, ok := def.PrimaryKey()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPrimaryKey, def.ID())
	}

	row := inst.Columns()
	if row[pk.ColumnName()] == nil {
		return fmt.Errorf("%w: %s.%s", ErrMissingKeyValue, def.ID(), pk.Name)
	}

	var updates []string
	for _, field := range def.Fields() {
		if !field.PrimaryKey {
			updates = append(updates, field.ColumnName())
		}
	}

	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: pk.ColumnName()}}}
	if len(updates) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updates)
	}

	err := r.dbPool.DB(ctx, false).
		Table(def.Table()).
		Clauses(onConflict).
		Create(row).Error
	if err != nil {
		return wrapErr(def, err)
	}

	util.Log(ctx).WithField("model", def.ID()).
		WithField("id", row[pk.ColumnName()]).
		Debug("Save -- instance stored")
	return nil
}

func (r *repository) Get(ctx context.Context, def *model.Definition, id any) (*model.Instance, error) {
	pk, ok := def.PrimaryKey()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, def.ID())
	}

	row := map[string]any{}
	err := r.dbPool.DB(ctx, true).
		Table(def.Table()).
		Select(columns(def)).
		Where(clause.Eq{Column: clause.Column{Name: pk.ColumnName()}, Value: id}).
		Take(&row).Error
	if err != nil {
		return nil, wrapErr(def, err)
	}

	inst := def.New()
	inst.Load(row)
	return inst, nil
}

// GetAllBy returns the rows whose columns equal properties, ordered by primary key.
func (r *repository) GetAllBy(
	ctx context.Context,
	def *model.Definition,
	properties map[string]any,
	offset, limit int,
) ([]*model.Instance, error) {
	query := r.dbPool.DB(ctx, true).
		Table(def.Table()).
		Select(columns(def)).
		Offset(offset)

	if limit > 0 {
		query = query.Limit(limit)
	}

	allowed := allowedColumns(def)
	for key, value := range properties {
		if !allowed[key] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidColumn, key)
		}
		query = query.Where(clause.Eq{Column: clause.Column{Name: key}, Value: value})
	}

	if pk, ok := def.PrimaryKey(); ok {
		query = query.Order(clause.OrderByColumn{Column: clause.Column{Name: pk.ColumnName()}})
	}

	var rows []map[string]any
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapErr(def, err)
	}

	instances := make([]*model.Instance, 0, len(rows))
	for _, row := range rows {
		inst := def.New()
		inst.Load(row)
		instances = append(instances, inst)
	}
	return instances, nil
}

func (r *repository) Count(ctx context.Context, def *model.Definition) (int64, error) {
	var count int64
	err := r.dbPool.DB(ctx, true).Table(def.Table()).Count(&count).Error
	if err != nil {
		return 0, wrapErr(def, err)
	}
	return count, nil
}

func (r *repository) Delete(ctx context.Context, def *model.Definition, id any) error {
	pk, ok := def.PrimaryKey()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPrimaryKey, def.ID())
	}

	err := r.dbPool.DB(ctx, false).
		Table(def.Table()).
		Where(clause.Eq{Column: clause.Column{Name: pk.ColumnName()}, Value: id}).
		Delete(map[string]any{}).Error
	if err != nil {
		return wrapErr(def, err)
	}
	return nil
}

func columns(def *model.Definition) []string {
	fields := def.Fields()
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.ColumnName())
	}
	return names
}

func allowedColumns(def *model.Definition) map[string]bool {
	allowed := map[string]bool{}
	for _, name := range columns(def) {
		allowed[name] = true
	}
	return allowed
}

func wrapErr(def *model.Definition, err error) error {
	switch {
	case data.ErrorIsNoRows(err):
		return fmt.Errorf("%w: %s", ErrNotFound, def.ID())
	case data.ErrorIsUndefinedColumn(err):
		return fmt.Errorf("%w: %s: %w", ErrColumnsNotSynced, def.Table(), err)
	default:
		return fmt.Errorf("%s: %w", def.Table(), err)
	}
}
