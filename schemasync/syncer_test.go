package schemasync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/modeltranslation/schemasync"
	"github.com/pitabwire/modeltranslation/tests"
)

type SyncerTestSuite struct {
	tests.BaseTestSuite
}

func TestSyncerSuite(t *testing.T) {
	suite.Run(t, &SyncerTestSuite{})
}

func (s *SyncerTestSuite) TestSyncAddsMissingColumns() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	db := dbPool.DB(ctx, false)
	s.Require().NoError(db.Exec(`CREATE TABLE articles (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		body TEXT,
		title_en VARCHAR(255)
	)`).Error)
	s.Require().NoError(db.Exec(`INSERT INTO articles (title, body) VALUES ('Hello', 'World')`).Error)

	_, reg := newRegistry(t, "en", "de", "fr")
	s.Require().NoError(reg.Register(ctx, "blog.Article", "title"))

	syncer := schemasync.NewSyncer(reg, dbPool)

	report, err := syncer.Inspect(ctx)
	s.Require().NoError(err)
	s.False(report.InSync())
	s.Require().Len(report.Models, 1)
	s.Equal([]schemasync.Drift{{BaseField: "title", MissingLanguages: []string{"de", "fr"}}}, report.Models[0].Drift)
	s.Len(report.Statements(), 2)
	s.False(db.Migrator().HasColumn("articles", "title_de"))

	var asked []string
	report, err = syncer.Sync(ctx, schemasync.ConfirmFunc(func(_ context.Context, plan schemasync.ModelPlan) (bool, error) {
		asked = append(asked, plan.ModelID)
		return true, nil
	}))
	s.Require().NoError(err)
	s.Equal([]string{"blog.Article"}, asked)
	s.True(report.Models[0].Executed)

	s.True(db.Migrator().HasColumn("articles", "title_de"))
	s.True(db.Migrator().HasColumn("articles", "title_fr"))

	report, err = syncer.Inspect(ctx)
	s.Require().NoError(err)
	s.True(report.InSync())
}

func (s *SyncerTestSuite) TestSyncFillsRequiredDefaultColumn() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	db := dbPool.DB(ctx, false)
	s.Require().NoError(db.Exec(`CREATE TABLE articles (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		body TEXT
	)`).Error)
	s.Require().NoError(db.Exec(`INSERT INTO articles (title) VALUES ('Hello')`).Error)

	_, reg := newRegistry(t, "en", "de")
	s.Require().NoError(reg.Register(ctx, "blog.Article", "title"))

	report, err := schemasync.NewSyncer(reg, dbPool).Sync(ctx, schemasync.NoInput)
	s.Require().NoError(err)
	s.True(report.Models[0].Executed)

	var titleEN string
	s.Require().NoError(db.Raw(`SELECT title_en FROM articles`).Scan(&titleEN).Error)
	s.Equal("Hello", titleEN)

	err = db.Exec(`INSERT INTO articles (title) VALUES ('No default')`).Error
	s.Require().Error(err)
}

func (s *SyncerTestSuite) TestDeclinedPlanIsNotExecuted() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	db := dbPool.DB(ctx, false)
	s.Require().NoError(db.Exec(`CREATE TABLE articles (id BIGSERIAL PRIMARY KEY, title VARCHAR(255), body TEXT)`).Error)

	_, reg := newRegistry(t, "en", "de")
	s.Require().NoError(reg.Register(ctx, "blog.Article", "title"))

	report, err := schemasync.NewSyncer(reg, dbPool).Sync(ctx,
		schemasync.ConfirmFunc(func(context.Context, schemasync.ModelPlan) (bool, error) { return false, nil }))
	s.Require().NoError(err)
	s.False(report.Models[0].Executed)
	s.False(db.Migrator().HasColumn("articles", "title_en"))
}

func (s *SyncerTestSuite) TestMissingTableIsReported() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	_, reg := newRegistry(t, "en", "de")
	s.Require().NoError(reg.Register(ctx, "blog.Article", "title"))

	report, err := schemasync.NewSyncer(reg, dbPool).Inspect(ctx)
	s.Require().NoError(err)
	s.Require().Len(report.Models, 1)
	s.True(report.Models[0].TableMissing)
	s.True(report.InSync())
}
