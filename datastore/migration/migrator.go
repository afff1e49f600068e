package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/modeltranslation/data"
)

// StringPrefix marks journal entries that were not read from a migration file.
const StringPrefix = "string:"

var (
	ErrNoDatabase        = errors.New("no database configured")
	ErrMigrationNotFound = errors.New("migration not found")
	ErrNoRevertPatch     = errors.New("migration has no revert patch")
)

// Migration is a journal row holding one schema patch and when it was applied.
type Migration struct {
	data.BaseModel

	Name        string `gorm:"type:text;uniqueIndex:idx_migrations_name"`
	Patch       string `gorm:"type:text"`
	RevertPatch string `gorm:"type:text"`
	AppliedAt   sql.NullTime
}

type Patch struct {
	// Name is a simple description/name of this migration.
	Name string
	// Patch is the SQL to execute for an upgrade.
	Patch string
	// RevertPatch is the SQL to execute for a downgrade.
	RevertPatch string
}

type datastoreMigrator struct {
	dbGetter func(ctx context.Context) *gorm.DB
	logger   *util.LogEntry
}

func NewMigrator(ctx context.Context, dbGetter func(ctx context.Context) *gorm.DB) Migrator {
	return &datastoreMigrator{
		dbGetter: dbGetter,
		logger:   util.Log(ctx).WithField("component", "migrator"),
	}
}

func (m *datastoreMigrator) DB(ctx context.Context) *gorm.DB {
	return m.dbGetter(ctx)
}

// ScanMigrationFiles records every *.sql file of migrationsDirPath. A file named x_up.sql takes
// its revert patch from x_down.sql when present.
func (m *datastoreMigrator) ScanMigrationFiles(ctx context.Context, migrationsDirPath string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDirPath, "*.sql"))
	if err != nil {
		return err
	}

	sort.Strings(files)

	for _, file := range files {
		filename := filepath.Base(file)
		if strings.HasSuffix(filename, "_down.sql") {
			continue
		}

		migrationPatch, readErr := os.ReadFile(file)
		if readErr != nil {
			m.logger.WithError(readErr).
				WithField("file", filename).
				Error("ScanMigrationFiles -- Problem reading migration file content")
			continue
		}

		revertPatch := ""
		if base, ok := strings.CutSuffix(filename, "_up.sql"); ok {
			downPatch, downErr := os.ReadFile(filepath.Join(migrationsDirPath, base+"_down.sql"))
			if downErr == nil {
				revertPatch = string(downPatch)
			}
		}

		err = m.SaveMigrationString(ctx, file, string(migrationPatch), revertPatch)
		if err != nil {
			m.logger.WithError(err).
				WithField("file", filename).
				Error("ScanMigrationFiles -- new migration could not be saved")
			return err
		}
	}
	return nil
}

// SaveMigrationString records a patch under name. Names that are not existing files are stored
// with StringPrefix. The patch of an entry not applied yet is replaced, applied entries are
// never touched.
func (m *datastoreMigrator) SaveMigrationString(
	ctx context.Context,
	name string,
	migrationPatch string,
	revertPatch string,
) error {
	db := m.DB(ctx)
	if db == nil {
		return fmt.Errorf("save migration: %w", ErrNoDatabase)
	}

	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		name = StringPrefix + name
	}

	var existing Migration
	err := db.First(&existing, "name = ?", name).Error
	if err != nil {
		if !data.ErrorIsNoRows(err) {
			return fmt.Errorf("save migration lookup failed: %w", err)
		}

		err = db.Create(&Migration{
			Name:        name,
			Patch:       migrationPatch,
			RevertPatch: revertPatch,
		}).Error
		if err != nil && !data.ErrorIsDuplicateKey(err) {
			return fmt.Errorf("save migration insert failed: %w", err)
		}
		return nil
	}

	if existing.AppliedAt.Valid {
		return nil
	}

	updates := map[string]any{}
	if existing.Patch != migrationPatch {
		updates["patch"] = migrationPatch
	}
	if revertPatch != "" && existing.RevertPatch != revertPatch {
		updates["revert_patch"] = revertPatch
	}
	if len(updates) == 0 {
		return nil
	}

	err = db.Model(&existing).Where("applied_at IS NULL").Updates(updates).Error
	if err != nil {
		return fmt.Errorf("save migration update failed: %w", err)
	}
	return nil
}

func (m *datastoreMigrator) Pending(ctx context.Context) ([]*Migration, error) {
	db := m.DB(ctx)
	if db == nil {
		return nil, fmt.Errorf("pending migrations: %w", ErrNoDatabase)
	}

	var pending []*Migration
	err := db.Where("applied_at IS NULL").Order("name ASC").Find(&pending).Error
	if err != nil && !data.ErrorIsNoRows(err) {
		return nil, err
	}
	return pending, nil
}

// ApplyNewMigrations runs each pending patch in its own transaction holding a row lock on the
// journal entry, so concurrent runners apply every patch once.
func (m *datastoreMigrator) ApplyNewMigrations(ctx context.Context) error {
	db := m.DB(ctx)
	if db == nil {
		return fmt.Errorf("apply migrations: %w", ErrNoDatabase)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		m.logger.Debug("ApplyNewMigrations -- No migrations found to be applied")
		return nil
	}

	for _, migration := range pending {
		err = db.Transaction(func(tx *gorm.DB) error {
			var lockRow Migration
			lockErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&lockRow, "id = ?", migration.ID).Error
			if lockErr != nil {
				if data.ErrorIsNoRows(lockErr) {
					return nil
				}
				return lockErr
			}

			if lockRow.AppliedAt.Valid {
				return nil
			}

			if execErr := tx.Exec(lockRow.Patch).Error; execErr != nil {
				return fmt.Errorf("migration %s: %w", lockRow.Name, execErr)
			}

			return tx.Model(&Migration{}).
				Where("id = ? AND applied_at IS NULL", lockRow.ID).
				Update("applied_at", sql.NullTime{Time: time.Now().UTC(), Valid: true}).Error
		})
		if err != nil {
			return err
		}

		m.logger.WithField("migration", migration.Name).Debug("ApplyNewMigrations -- Successfully applied migration")
	}

	return nil
}

// Revert accepts the name a patch was saved under, with or without StringPrefix. A migration
// that was never applied is only removed from the journal.
func (m *datastoreMigrator) Revert(ctx context.Context, name string) error {
	db := m.DB(ctx)
	if db == nil {
		return fmt.Errorf("revert migration: %w", ErrNoDatabase)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var row Migration
		lockErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "name IN ?", []string{name, StringPrefix + name}).Error
		if lockErr != nil {
			if data.ErrorIsNoRows(lockErr) {
				return fmt.Errorf("%w: %s", ErrMigrationNotFound, name)
			}
			return lockErr
		}

		if row.AppliedAt.Valid {
			if row.RevertPatch == "" {
				return fmt.Errorf("%w: %s", ErrNoRevertPatch, row.Name)
			}
			if execErr := tx.Exec(row.RevertPatch).Error; execErr != nil {
				return fmt.Errorf("revert %s: %w", row.Name, execErr)
			}
		}

		return tx.Unscoped().Delete(&Migration{}, "id = ?", row.ID).Error
	})
	if err != nil {
		return err
	}

	m.logger.WithField("migration", name).Info("Revert -- migration reverted")
	return nil
}
