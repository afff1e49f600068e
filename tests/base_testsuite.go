// Package tests holds the shared harness of the database backed integration tests.
package tests

import (
	"context"
	"testing"

	"github.com/pitabwire/util"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/modeltranslation/config"
	"github.com/pitabwire/modeltranslation/data"
	"github.com/pitabwire/modeltranslation/datastore/pool"
	"github.com/pitabwire/modeltranslation/tests/testpostgres"
)

const DefaultRandomStringLength = 8

// BaseTestSuite starts one PostgreSQL container per suite. Suites are skipped with -short.
type BaseTestSuite struct {
	suite.Suite

	postgres *testpostgres.Container
}

func (bs *BaseTestSuite) SetupSuite() {
	if testing.Short() {
		bs.T().Skip("skipping database backed tests in short mode")
	}

	ctx := bs.T().Context()
	util.Log(ctx).WithField("image", testpostgres.PostgresqlDBImage).Info("Setting up container...")

	container, err := testpostgres.Start(ctx)
	bs.Require().NoError(err, "could not start postgres")
	bs.postgres = container
}

func (bs *BaseTestSuite) TearDownSuite() {
	if bs.postgres != nil {
		bs.postgres.Terminate(context.Background())
	}
}

// NewDSN creates a fresh database, dropped when t finishes.
func (bs *BaseTestSuite) NewDSN(t *testing.T) data.DSN {
	t.Helper()

	dsn, cleanup, err := bs.postgres.NewDatabase(t.Context(), util.RandomAlphaNumericString(DefaultRandomStringLength))
	bs.Require().NoError(err, "could not create test database")
	t.Cleanup(func() { cleanup(context.Background()) })
	return dsn
}

// NewPool connects a pool to a fresh database.
func (bs *BaseTestSuite) NewPool(t *testing.T) pool.Pool {
	t.Helper()

	ctx := t.Context()
	dsn := bs.NewDSN(t)

	cfg := &config.ConfigurationDefault{DatabaseSlowQueryLogThreshold: "1s"}
	dbPool := pool.NewPool(ctx)
	err := dbPool.AddConnection(ctx,
		pool.WithConnection(dsn.String(), false),
		pool.WithTraceConfig(cfg),
	)
	bs.Require().NoError(err, "could not connect to test database")
	t.Cleanup(func() { dbPool.Close(context.Background()) })
	return dbPool
}
