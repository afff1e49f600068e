package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/schema"

	"github.com/pitabwire/modeltranslation/localization"
	"github.com/pitabwire/modeltranslation/model"
	"github.com/pitabwire/modeltranslation/registry"
	"github.com/pitabwire/modeltranslation/store"
	"github.com/pitabwire/modeltranslation/tests"
)

type RepositoryTestSuite struct {
	tests.BaseTestSuite
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, &RepositoryTestSuite{})
}

func (s *RepositoryTestSuite) newRegistry() *registry.Registry {
	catalog := model.NewCatalog()
	_, err := catalog.Define("blog.Article", "articles",
		model.FieldDescriptor{Name: "id", DataType: schema.Int, Size: 64, PrimaryKey: true},
		model.FieldDescriptor{Name: "title", DataType: schema.String, Size: 255, Editable: true},
		model.FieldDescriptor{Name: "rating", DataType: schema.Int, Size: 64, Nullable: true, Editable: true},
	)
	s.Require().NoError(err)

	resolver, err := localization.NewResolver([]string{"en", "de"}, "en")
	s.Require().NoError(err)

	reg := registry.New(catalog, resolver)
	s.Require().NoError(reg.Register(context.Background(), "blog.Article", "title"))
	return reg
}

func (s *RepositoryTestSuite) TestSaveGetDelete() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	s.Require().NoError(dbPool.DB(ctx, false).Exec(`CREATE TABLE articles (
		id BIGINT PRIMARY KEY,
		title VARCHAR(255),
		rating BIGINT,
		title_en VARCHAR(255),
		title_de VARCHAR(255)
	)`).Error)

	reg := s.newRegistry()
	def, err := reg.Schema().Definition("blog.Article")
	s.Require().NoError(err)

	repo := store.NewRepository(dbPool, reg)
	s.Equal(dbPool, repo.Pool())

	inst := def.New()
	inst.SetRaw("id", int64(1))
	inst.Set(ctx, "title", "Hello")
	inst.Set(localization.Activate(ctx, "de"), "title", "Hallo")
	inst.SetRaw("rating", int64(4))
	s.Require().NoError(repo.Save(ctx, inst))

	loaded, err := repo.Get(ctx, def, int64(1))
	s.Require().NoError(err)
	s.Equal("Hello", loaded.Raw("title"))
	s.Equal("Hello", loaded.Raw("title_en"))
	s.Equal("Hallo", loaded.Raw("title_de"))
	s.Equal("Hallo", loaded.Get(localization.Activate(ctx, "de-AT"), "title"))
	s.EqualValues(4, loaded.Raw("rating"))

	loaded.SetRaw("title_en", "Hi")
	s.Require().NoError(repo.Save(ctx, loaded))

	updated, err := repo.Get(ctx, def, int64(1))
	s.Require().NoError(err)
	s.Equal("Hi", updated.Raw("title"), "saving syncs the default language into the base column")

	second := def.New()
	second.SetRaw("id", int64(2))
	second.SetRaw("title_en", "Second")
	s.Require().NoError(repo.Save(ctx, second))

	count, err := repo.Count(ctx, def)
	s.Require().NoError(err)
	s.EqualValues(2, count)

	found, err := repo.GetAllBy(ctx, def, map[string]any{"title": "Second"}, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.EqualValues(2, found[0].Raw("id"))

	_, err = repo.GetAllBy(ctx, def, map[string]any{"title; DROP TABLE articles": "x"}, 0, 10)
	s.Require().ErrorIs(err, store.ErrInvalidColumn)

	s.Require().NoError(repo.Delete(ctx, def, int64(1)))
	_, err = repo.Get(ctx, def, int64(1))
	s.Require().ErrorIs(err, store.ErrNotFound)
}

func (s *RepositoryTestSuite) TestSaveKeepsBaseOfRowNotBackfilled() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	db := dbPool.DB(ctx, false)
	s.Require().NoError(db.Exec(`CREATE TABLE articles (
		id BIGINT PRIMARY KEY,
		title VARCHAR(255),
		rating BIGINT,
		title_en VARCHAR(255),
		title_de VARCHAR(255)
	)`).Error)
	s.Require().NoError(db.Exec(`INSERT INTO articles (id, title, rating) VALUES (1, 'Legacy', 3)`).Error)

	reg := s.newRegistry()
	def, err := reg.Schema().Definition("blog.Article")
	s.Require().NoError(err)
	repo := store.NewRepository(dbPool, reg)

	loaded, err := repo.Get(ctx, def, int64(1))
	s.Require().NoError(err)
	s.Nil(loaded.Raw("title_en"))

	loaded.SetRaw("rating", int64(4))
	s.Require().NoError(repo.Save(ctx, loaded))

	reloaded, err := repo.Get(ctx, def, int64(1))
	s.Require().NoError(err)
	s.Equal("Legacy", reloaded.Raw("title"))
	s.Nil(reloaded.Raw("title_en"))
	s.EqualValues(4, reloaded.Raw("rating"))
}

func (s *RepositoryTestSuite) TestSaveWithoutSyncedColumns() {
	t := s.T()
	ctx := t.Context()
	dbPool := s.NewPool(t)

	s.Require().NoError(dbPool.DB(ctx, false).Exec(`CREATE TABLE articles (
		id BIGINT PRIMARY KEY,
		title VARCHAR(255),
		rating BIGINT
	)`).Error)

	reg := s.newRegistry()
	def, err := reg.Schema().Definition("blog.Article")
	s.Require().NoError(err)

	inst := def.New()
	inst.SetRaw("id", int64(1))
	inst.Set(ctx, "title", "Hello")

	err = store.NewRepository(dbPool, reg).Save(ctx, inst)
	s.Require().ErrorIs(err, store.ErrColumnsNotSynced)
}

func TestSaveRequiresPrimaryKey(t *testing.T) {
	catalog := model.NewCatalog()

	noKey, err := catalog.Define("blog.Tag", "tags", model.FieldDescriptor{Name: "name", DataType: schema.String})
	require.NoError(t, err)

	withKey, err := catalog.Define("blog.Note", "notes",
		model.FieldDescriptor{Name: "id", DataType: schema.Int, PrimaryKey: true},
		model.FieldDescriptor{Name: "text", DataType: schema.String},
	)
	require.NoError(t, err)

	repo := store.NewRepository(nil, nil)

	testCases := []struct {
		name string
		inst *model.Instance
		want error
	}{
		{name: "model without primary key", inst: noKey.New(), want: store.ErrNoPrimaryKey},
		{name: "unset primary key value", inst: withKey.New(), want: store.ErrMissingKeyValue},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, repo.Save(context.Background(), tc.inst), tc.want)
		})
	}
}
