// Package testpostgres runs a disposable PostgreSQL server for integration tests.
package testpostgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pitabwire/modeltranslation/data"
)

const (
	// PostgresqlDBImage is the PostgreSQL Image.
	PostgresqlDBImage = "postgres:17-alpine"

	DBUser     = "translation"
	DBPassword = "tr@nsl4te"
	DBName     = "translation_test"

	// postgres identifiers are limited to 63 bytes.
	maxIdentifierLength = 60

	readyLogOccurrence = 2
	startupTimeout     = 60 * time.Second
)

var invalidIdentifierChars = regexp.MustCompile(`[^a-z0-9_]`)

// Container is a running PostgreSQL test server.
type Container struct {
	container *tcPostgres.PostgresContainer
	dsn       data.DSN
}

// Start launches the server and waits until it accepts connections.
func Start(ctx context.Context) (*Container, error) {
	pgContainer, err := tcPostgres.Run(ctx, PostgresqlDBImage,
		tcPostgres.WithDatabase(DBName),
		tcPostgres.WithUsername(DBUser),
		tcPostgres.WithPassword(DBPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(readyLogOccurrence).
				WithStartupTimeout(startupTimeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connectionString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
		return nil, err
	}

	return &Container{container: pgContainer, dsn: data.DSN(connectionString)}, nil
}

func (c *Container) DSN() data.DSN {
	return c.dsn
}

// NewDatabase creates an isolated database named after suffix and returns its DSN together with
// a cleanup function dropping it.
func (c *Container) NewDatabase(ctx context.Context, suffix string) (data.DSN, func(context.Context), error) {
	name := DatabaseName(c.dsn.Database(), suffix)

	admin, err := pgxpool.New(ctx, c.dsn.String())
	if err != nil {
		return "", nil, err
	}
	defer admin.Close()

	_, err = admin.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s`, name))
	if err != nil {
		var pgErr *pgconn.PgError
		// 42P04: duplicate_database
		if !errors.As(err, &pgErr) || pgErr.Code != "42P04" {
			return "", nil, err
		}
	}

	dsn, err := c.dsn.WithDatabase(name)
	if err != nil {
		return "", nil, err
	}

	cleanup := func(ctx context.Context) {
		dropper, dropErr := pgxpool.New(ctx, c.dsn.String())
		if dropErr != nil {
			return
		}
		defer dropper.Close()
		_, _ = dropper.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %s WITH (FORCE)`, name))
	}
	return dsn, cleanup, nil
}

func (c *Container) Terminate(_ context.Context) {
	_ = testcontainers.TerminateContainer(c.container)
}

// DatabaseName derives a valid lower case postgres identifier from base and suffix.
func DatabaseName(base, suffix string) string {
	if base == "" {
		base = "db"
	}

	maxBase := maxIdentifierLength - len(suffix) - 1
	if maxBase > 0 && len(base) > maxBase {
		base = base[:maxBase]
	}

	name := strings.ToLower(base + "_" + suffix)
	return invalidIdentifierChars.ReplaceAllString(name, "_")
}
