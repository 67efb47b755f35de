// Package sqlite opens Calibre metadata databases through modernc.org/sqlite
// and registers the REGEXP function the relational recall dialect relies on.
//
// SQLite parses "X REGEXP Y" but ships no implementation; this package
// installs one backed by Go's regexp package, matching case-insensitively
// to mirror how the catalog stores mixed-case titles.
//
// Usage:
//
//	db, err := sqlite.Open("metadata.db", sqlite.WithReadOnly())
//
// In tests:
//
//	db := sqlite.OpenMemory(t, sqlite.WithSchema(ddl))
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

type config struct {
	readOnly    bool
	busyTimeout time.Duration
	schemas     []string
	ping        bool
}

func defaults() config {
	return config{
		busyTimeout: 5 * time.Second,
		ping:        true,
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithReadOnly opens the file with mode=ro. Calibre owns metadata.db, so the
// catalog never writes to it.
func WithReadOnly() Option { return func(c *config) { c.readOnly = true } }

// WithBusyTimeout sets PRAGMA busy_timeout. Default: 5s.
func WithBusyTimeout(d time.Duration) Option { return func(c *config) { c.busyTimeout = d } }

// WithSchema queues inline SQL to execute after pragmas are applied.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// WithoutPing skips the db.Ping() verification after opening.
func WithoutPing() Option { return func(c *config) { c.ping = false } }

// Open opens the database at path. The REGEXP function is available on
// every connection of the returned pool.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	db, err := sql.Open(DriverName, dsn(path, cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds())
	if _, err := db.Exec(pragma); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec schema: %w", err)
		}
	}

	if cfg.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests. A single connection is
// kept so every query sees the same database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("sqlite.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func dsn(path string, cfg config) string {
	if !cfg.readOnly || path == ":memory:" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	q := url.Values{}
	q.Set("mode", "ro")
	u.RawQuery = q.Encode()
	return u.String()
}
