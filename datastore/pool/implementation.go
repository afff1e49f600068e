package pool

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pitabwire/util"
	"gorm.io/gorm"

	"github.com/pitabwire/modeltranslation/data"
	"github.com/pitabwire/modeltranslation/datastore/migration"
)

const defaultInsertBatchSize = 1000

var ErrNoWritableDatabase = errors.New("no writable database configured")

type pool struct {
	readIdx     uint64       // atomic counter for round-robin
	writeIdx    uint64       // atomic counter for round-robin
	mu          sync.RWMutex // protects db slices
	allReadDBs  []*gorm.DB
	allWriteDBs []*gorm.DB

	shouldDoMigrations bool
}

func NewPool(_ context.Context) Pool {
	return &pool{
		shouldDoMigrations: true,
	}
}

// AddConnection connects to every database listed in opts and adds it to the pool.
func (s *pool) AddConnection(ctx context.Context, opts ...Option) error {
	poolOpts := &Options{
		PreferSimpleProtocol:   true,
		SkipDefaultTransaction: true,
	}

	for _, opt := range opts {
		opt(poolOpts)
	}

	for _, conn := range poolOpts.Connections {
		db, err := s.createConnection(ctx, conn, poolOpts)
		if err != nil {
			return err
		}
		util.Log(ctx).WithField("dsn", data.DSN(conn.DSN).Redacted()).
			WithField("read_only", conn.ReadOnly).
			Debug("AddConnection -- database connected")

		db = db.Session(&gorm.Session{CreateBatchSize: defaultInsertBatchSize})

		s.mu.Lock()
		if conn.ReadOnly {
			s.allReadDBs = append(s.allReadDBs, db)
		} else {
			s.allWriteDBs = append(s.allWriteDBs, db)
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *pool) Close(_ context.Context) {
	s.mu.Lock()
	dbs := append(append([]*gorm.DB(nil), s.allReadDBs...), s.allWriteDBs...)
	s.allReadDBs = nil
	s.allWriteDBs = nil
	s.mu.Unlock()

	for _, db := range dbs {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
}

// DB returns the next connection in round robin order. Reads fall back to writable connections
// when no replica is configured.
func (s *pool) DB(ctx context.Context, readOnly bool) *gorm.DB {
	var selectedDB *gorm.DB

	s.mu.RLock()
	if readOnly {
		selectedDB = s.selectOne(s.allReadDBs, &s.readIdx)
	}
	if selectedDB == nil {
		selectedDB = s.selectOne(s.allWriteDBs, &s.writeIdx)
	}
	s.mu.RUnlock()

	if selectedDB == nil {
		return nil
	}

	return selectedDB.Session(&gorm.Session{NewDB: true}).WithContext(ctx)
}

// selectOne uses atomic round-robin for high concurrency.
func (s *pool) selectOne(dbs []*gorm.DB, idx *uint64) *gorm.DB {
	if len(dbs) == 0 {
		return nil
	}
	pos := atomic.AddUint64(idx, 1)
	return dbs[int(pos-1)%len(dbs)] //nolint:gosec // G115: index is result of (val % len), always < len and fits in int.
}

func (s *pool) CanMigrate() bool {
	return s.shouldDoMigrations
}

func (s *pool) migrator(ctx context.Context) migration.Migrator {
	return migration.NewMigrator(ctx, func(ctx context.Context) *gorm.DB {
		return s.DB(ctx, false)
	})
}

// ensureJournal creates the migration table, tolerating a concurrent creation by another process.
func (s *pool) ensureJournal(ctx context.Context) error {
	db := s.DB(ctx, false)
	if db == nil {
		return ErrNoWritableDatabase
	}

	err := db.Migrator().AutoMigrate(&migration.Migration{})
	if err == nil {
		return nil
	}

	if !isRelationAlreadyExistsErr(err) {
		util.Log(ctx).WithError(err).Error("ensureJournal -- couldn't create migration table")
		return err
	}

	util.Log(ctx).WithError(err).Warn("ensureJournal -- migration table already created concurrently")
	return nil
}

func (s *pool) SaveMigration(ctx context.Context, migrationPatches ...*migration.Patch) error {
	if err := s.ensureJournal(ctx); err != nil {
		return err
	}

	migrationExecutor := s.migrator(ctx)
	for _, migrationPatch := range migrationPatches {
		err := migrationExecutor.SaveMigrationString(
			ctx,
			migrationPatch.Name,
			migrationPatch.Patch,
			migrationPatch.RevertPatch,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RevertMigration undoes applied migrations, last name first.
func (s *pool) RevertMigration(ctx context.Context, names ...string) error {
	if s.DB(ctx, false) == nil {
		return ErrNoWritableDatabase
	}

	migrationExecutor := s.migrator(ctx)
	for _, name := range slices.Backward(names) {
		if err := migrationExecutor.Revert(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *pool) Migrate(ctx context.Context, migrationsDirPath string, migrations ...any) error {
	if err := s.ensureJournal(ctx); err != nil {
		return err
	}

	if len(migrations) > 0 {
		err := s.DB(ctx, false).Migrator().AutoMigrate(migrations...)
		if err != nil {
			util.Log(ctx).WithError(err).Error("Migrate -- couldn't auto migrate")
			return err
		}
	}

	migrationExecutor := s.migrator(ctx)

	if migrationsDirPath != "" {
		err := migrationExecutor.ScanMigrationFiles(ctx, migrationsDirPath)
		if err != nil {
			util.Log(ctx).WithError(err).Error("Migrate -- Error scanning for new migrations")
			return err
		}
	}

	err := migrationExecutor.ApplyNewMigrations(ctx)
	if err != nil {
		util.Log(ctx).WithError(err).Error("Migrate -- Error applying migrations")
		return err
	}
	return nil
}

func isRelationAlreadyExistsErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P07"
	}

	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
