package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pitabwire/modeltranslation/data"
)

var ErrUnsupportedDSN = errors.New("unsupported database connection string")

// pgxConfig parses a postgres url or key=value connection string into a traced pool config.
// Replica sessions are opened read only.
func pgxConfig(conn Connection, opts *Options) (*pgxpool.Config, error) {
	dsn := data.DSN(strings.TrimSpace(conn.DSN))
	if !dsn.IsPostgres() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, dsn.Redacted())
	}

	cfg, err := pgxpool.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("parse connection %s: %w", dsn.Redacted(), err)
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()
	if opts.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	if conn.ReadOnly {
		cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	}
	if opts.MaxOpen > 0 {
		cfg.MaxConns = int32(opts.MaxOpen) //nolint:gosec // G115: configured pool sizes are small
	}
	if opts.MaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxLifetime
	}
	return cfg, nil
}

func (s *pool) createConnection(ctx context.Context, conn Connection, opts *Options) (*gorm.DB, error) {
	cfg, err := pgxConfig(conn, opts)
	if err != nil {
		return nil, err
	}

	pgxPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err = otelpgx.RecordStats(pgxPool); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("record database stats: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pgxPool)
	if opts.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdle)
	}
	if opts.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
	}

	db, err := gorm.Open(
		postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: opts.PreferSimpleProtocol}),
		&gorm.Config{
			Logger:                 datastoreLogger(ctx, opts.TraceConfig),
			SkipDefaultTransaction: opts.SkipDefaultTransaction,
		},
	)
	if err != nil {
		_ = sqlDB.Close()
		pgxPool.Close()
		return nil, fmt.Errorf("open database %s: %w", data.DSN(conn.DSN).Redacted(), err)
	}
	return db, nil
}
