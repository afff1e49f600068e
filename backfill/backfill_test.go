package backfill_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/modeltranslation/backfill"
	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
	"github.com/pitabwire/modeltranslation/tests"
	"github.com/pitabwire/modeltranslation/workerpool"
)

type BackfillTestSuite struct {
	tests.BaseTestSuite
}

func TestBackfillSuite(t *testing.T) {
	suite.Run(t, &BackfillTestSuite{})
}

func newRegistry(s *suite.Suite) *registry.Registry {
	catalog := model.NewCatalog()
	_, err := catalog.Define("blog.Article", "articles",
		model.FieldDescriptor{Name: "id", DataType: schema.Int, Size: 64, PrimaryKey: true},
		model.FieldDescriptor{Name: "title", DataType: schema.String, Size: 255},
		model.FieldDescriptor{Name: "rating", DataType: schema.Int, Size: 64, Nullable: true},
	)
	s.Require().NoError(err)

	resolver, err := localization.NewResolver([]string{"en", "de"}, "en")
	s.Require().NoError(err)

	reg := registry.New(catalog, resolver, registry.WithTranslatableTypes(schema.Int))
	s.Require().NoError(reg.Register(context.Background(), "blog.Article", "title", "rating"))
	return reg
}

func (s *BackfillTestSuite) TestUpdateFillsEmptyDefaultColumns() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	db := dbPool.DB(ctx, false)
	s.Require().NoError(db.Exec(`CREATE TABLE articles (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255),
		title_en VARCHAR(255),
		title_de VARCHAR(255),
		rating BIGINT,
		rating_en BIGINT,
		rating_de BIGINT
	)`).Error)
	s.Require().NoError(db.Exec(`INSERT INTO articles (id, title, title_en, rating, rating_en) VALUES
		(1, 'Hello', NULL, 3, NULL),
		(2, 'World', '', 4, 5),
		(3, 'Kept', 'Already', NULL, NULL)`).Error)

	workers, err := workerpool.New(ctx, &config.ConfigurationDefault{WorkerPoolCapacity: 2, WorkerPoolCount: 1})
	s.Require().NoError(err)
	defer workers.Shutdown()

	updater := backfill.NewUpdater(newRegistry(&s.Suite), dbPool, workers)
	results, err := updater.Update(ctx)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("blog.Article", results[0].ModelID)
	s.Equal(map[string]int64{"title": 2, "rating": 2}, results[0].Rows)

	type row struct {
		ID       int64
		TitleEn  *string
		RatingEn *int64
	}
	var rows []row
	s.Require().NoError(db.Table("articles").Select("id, title_en, rating_en").Order("id").Scan(&rows).Error)
	s.Require().Len(rows, 3)

	s.Equal("Hello", *rows[0].TitleEn)
	s.Equal(int64(3), *rows[0].RatingEn)
	s.Equal("World", *rows[1].TitleEn)
	s.Equal(int64(5), *rows[1].RatingEn)
	s.Equal("Already", *rows[2].TitleEn)
	s.Nil(rows[2].RatingEn)
}

func (s *BackfillTestSuite) TestUpdateReportsMissingColumns() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	s.Require().NoError(dbPool.DB(ctx, false).Exec(`CREATE TABLE articles (id BIGSERIAL PRIMARY KEY, title VARCHAR(255))`).Error)

	workers, err := workerpool.New(ctx, &config.ConfigurationDefault{WorkerPoolCapacity: 2, WorkerPoolCount: 1})
	s.Require().NoError(err)
	defer workers.Shutdown()

	results, err := backfill.NewUpdater(newRegistry(&s.Suite), dbPool, workers).Update(ctx, "blog.Article", "blog.Missing")
	s.Require().Error(err)
	s.Require().Len(results, 2)
	s.Require().Error(results[0].Err)
	s.Empty(results[0].Rows)
	s.ErrorIs(results[1].Err, registry.ErrNotRegistered)
}

func TestUpdateWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	_, err := backfill.NewUpdater(nil, pool.NewPool(ctx), nil).Update(ctx)
	require.ErrorIs(t, err, backfill.ErrNoDatabase)
}
