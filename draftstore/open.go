// Package draftstore is a SQLite-backed autosave.Store.
//
// Every snapshot lives in one row of the drafts table, keyed by storage
// key. Alongside the raw value it records the snapshot's capture time so
// stale drafts can be listed and purged without decoding every row.
//
// Default pragmas:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Usage:
//
//	s, err := draftstore.Open("drafts.db", draftstore.WithMaxValueBytes(5<<20))
//	defer s.Close()
//
// In tests:
//
//	s := draftstore.OpenMemory(t)
package draftstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// Schema is applied on every open; it is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS drafts (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    captured_at INTEGER NOT NULL,
    size        INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_captured_at ON drafts(captured_at);
`

type config struct {
	driver      string
	busyTimeout int
	synchronous string
	mkdirAll    bool
	maxValue    int
	now         func() time.Time
}

func defaults() config {
	return config{
		driver:      "sqlite",
		busyTimeout: 10_000,
		synchronous: "NORMAL",
		mkdirAll:    true,
		now:         time.Now,
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithDriver sets the database/sql driver name. Default: "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithoutMkdirAll stops Open from creating the parent directory.
func WithoutMkdirAll() Option { return func(c *config) { c.mkdirAll = false } }

// WithMaxValueBytes rejects snapshots larger than n bytes with
// autosave.ErrQuotaExceeded. 0 (default) means unlimited.
func WithMaxValueBytes(n int) Option { return func(c *config) { c.maxValue = n } }

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

// Open opens (or creates) the drafts database at path.
func Open(path string, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("draftstore: mkdir: %w", err)
		}
	}

	db, err := sql.Open(cfg.driver, path)
	if err != nil {
		return nil, fmt.Errorf("draftstore: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := applyPragmas(db, &cfg); err != nil {
		db.Close()
		return nil, err
	}
	s, err := newStore(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// OpenDB wraps an already opened handle and applies the schema. Close does
// not close db.
func OpenDB(db *sql.DB, opts ...Option) (*Store, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}
	return newStore(db, cfg)
}

// OpenMemory opens an in-memory store for testing. Every connection to
// ":memory:" is a separate database, so Open pins the pool to one.
func OpenMemory(t testing.TB, opts ...Option) *Store {
	t.Helper()
	s, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("draftstore.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newStore(db *sql.DB, cfg config) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("draftstore: exec schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("draftstore: ping: %w", err)
	}
	return &Store{db: db, maxValue: cfg.maxValue, now: cfg.now}, nil
}

func applyPragmas(db *sql.DB, cfg *config) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("draftstore: %s: %w", p, err)
		}
	}
	return nil
}
