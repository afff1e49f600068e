package migration

import (
	"context"

	"gorm.io/gorm"
)

// Migrator keeps the journal of schema patches. Each patch is applied at most once, even with
// several processes migrating the same database.
type Migrator interface {
	DB(ctx context.Context) *gorm.DB

	ScanMigrationFiles(ctx context.Context, dir string) error
	SaveMigrationString(ctx context.Context, name, patch, revertPatch string) error
	// Pending lists the recorded migrations not applied yet, in application order.
	Pending(ctx context.Context) ([]*Migration, error)
	ApplyNewMigrations(ctx context.Context) error
	// Revert runs the revert patch of an applied migration and removes it from the journal.
	Revert(ctx context.Context, name string) error
}
