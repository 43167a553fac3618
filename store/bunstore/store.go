package bunstore

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialectKind distinguishes the small set of places Dispatch/Migrate
// must special-case: Postgres has advisory locks, SKIP LOCKED and a
// stored procedure; SQLite (test-only) has none of those.
type dialectKind int

const (
	dialectPostgres dialectKind = iota
	dialectSQLite
)

// Store implements store.Store on top of a *bun.DB.
//
// Queue names the logical queue this Store instance serves (it scopes
// group_concurrency rows and is used verbatim in bus/notification
// channel names elsewhere); distinct Store instances against the same
// schema represent the independent side-queues spec.md §1 calls out
// (billing/index/webhook), reusing the same table layout.
type Store struct {
	db      *bun.DB
	dialect dialectKind
	queue   string

	// ResolveMaxConcurrency stands in, on SQLite, for the Postgres
	// resolve_max_concurrency stored procedure: it is consulted the
	// first time an owner is seen, and a nil result (or a nil func)
	// fails closed to max_concurrency=0. Production (Postgres) stores
	// ignore this field entirely.
	ResolveMaxConcurrency func(ctx context.Context, ownerID uuid.UUID) (*int, error)
}

// NewPostgresStore opens a Postgres-backed Store using lib/pq as the
// database/sql driver and bun's pgdialect, the pairing the pack's
// flyingrobots-go-redis-work-queue and mazori-ai-modelgate manifests
// both use when they need LISTEN/NOTIFY alongside a connection pool.
func NewPostgresStore(dsn string, queueName string) (*Store, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Store{db: db, dialect: dialectPostgres, queue: queueName}, nil
}

// NewSQLiteStore opens a SQLite-backed Store, for tests. It mirrors the
// teacher's newTestDB helper: a single pooled connection, WAL mode and
// a generous busy_timeout, since SQLite serializes writers anyway.
func NewSQLiteStore(path string, queueName string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	return &Store{db: db, dialect: dialectSQLite, queue: queueName}, nil
}

// DB exposes the underlying *bun.DB, e.g. for metrics.Sampler's
// PoolStats field.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Ping issues SELECT 1 against the store.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "SELECT 1")
	return err
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
