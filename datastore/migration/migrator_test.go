package migration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/pitabwire/modeltranslation/datastore/migration"
	"github.com/pitabwire/modeltranslation/tests"
)

type MigratorTestSuite struct {
	tests.BaseTestSuite
}

func TestMigratorSuite(t *testing.T) {
	suite.Run(t, &MigratorTestSuite{})
}

func (s *MigratorTestSuite) TestScanAndApply() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	s.Require().NoError(dbPool.Migrate(ctx, "./testdata/migrations"))

	var journal []migration.Migration
	s.Require().NoError(dbPool.DB(ctx, false).Order("name ASC").Find(&journal).Error)
	s.Require().Len(journal, 2)
	s.Equal(filepath.Join("testdata", "migrations", "0001_articles_up.sql"), journal[0].Name)
	s.Contains(journal[0].RevertPatch, "DROP TABLE")
	s.True(journal[0].AppliedAt.Valid)
	s.True(journal[1].AppliedAt.Valid)

	var count int64
	s.Require().NoError(dbPool.DB(ctx, true).Table("articles").Count(&count).Error)
	s.Equal(int64(1), count)

	// a second run applies nothing again
	s.Require().NoError(dbPool.Migrate(ctx, "./testdata/migrations"))
	s.Require().NoError(dbPool.DB(ctx, true).Table("articles").Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *MigratorTestSuite) TestSaveMigrationString() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	patch := &migration.Patch{
		Name:        "create_pages",
		Patch:       "CREATE TABLE pages (id BIGSERIAL PRIMARY KEY);",
		RevertPatch: "DROP TABLE pages;",
	}
	s.Require().NoError(dbPool.SaveMigration(ctx, patch))

	m := migration.NewMigrator(ctx, func(ctx2 context.Context) *gorm.DB { return dbPool.DB(ctx2, false) })
	pending, err := m.Pending(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(migration.StringPrefix+"create_pages", pending[0].Name)

	// an unapplied patch is replaced
	patch.Patch = "CREATE TABLE pages (id BIGSERIAL PRIMARY KEY, name TEXT);"
	s.Require().NoError(dbPool.SaveMigration(ctx, patch))
	pending, err = m.Pending(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(patch.Patch, pending[0].Patch)

	s.Require().NoError(m.ApplyNewMigrations(ctx))
	pending, err = m.Pending(ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	s.True(dbPool.DB(ctx, false).Migrator().HasColumn("pages", "name"))

	// an applied patch is left untouched
	patch.Patch = "SELECT 1;"
	s.Require().NoError(dbPool.SaveMigration(ctx, patch))
	pending, err = m.Pending(ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	s.Require().NoError(dbPool.RevertMigration(ctx, "create_pages"))
	s.False(dbPool.DB(ctx, false).Migrator().HasTable("pages"))

	var remaining int64
	s.Require().NoError(dbPool.DB(ctx, false).Model(&migration.Migration{}).
		Where("name = ?", migration.StringPrefix+"create_pages").Count(&remaining).Error)
	s.Zero(remaining)

	s.Require().ErrorIs(dbPool.RevertMigration(ctx, "create_pages"), migration.ErrMigrationNotFound)
}

func (s *MigratorTestSuite) TestRevertWithoutRevertPatch() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	s.Require().NoError(dbPool.SaveMigration(ctx, &migration.Patch{
		Name:  "create_tags",
		Patch: "CREATE TABLE tags (id BIGSERIAL PRIMARY KEY);",
	}))
	s.Require().NoError(dbPool.Migrate(ctx, ""))

	s.Require().ErrorIs(dbPool.RevertMigration(ctx, "create_tags"), migration.ErrNoRevertPatch)
	s.True(dbPool.DB(ctx, false).Migrator().HasTable("tags"))
}
