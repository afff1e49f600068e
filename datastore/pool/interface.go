package pool

import (
	"context"

	"gorm.io/gorm"

	"github.com/pitabwire/modeltranslation/datastore/migration"
)

// Pool spreads work over primary and replica databases and owns the migration journal that
// schema sync writes its translation column patches to.
type Pool interface {
	// DB is nil when no database fits; readOnly prefers replicas.
	DB(ctx context.Context, readOnly bool) *gorm.DB
	AddConnection(ctx context.Context, opts ...Option) error

	CanMigrate() bool
	// SaveMigration records patches in the journal without applying them.
	SaveMigration(ctx context.Context, patches ...*migration.Patch) error
	// Migrate records the *.sql files of dir, when given, then applies every pending patch.
	Migrate(ctx context.Context, dir string, models ...any) error
	RevertMigration(ctx context.Context, names ...string) error

	Close(ctx context.Context)
}
