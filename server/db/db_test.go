package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

var _testdb uint64

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	// Get the current unique index.
	u := atomic.AddUint64(&_testdb, 1)

	var dbpath = filepath.Join(
		os.TempDir(),
		fmt.Sprintf("smolblog-db-test-%d-%d", time.Now().UnixNano(), u),
	)

	// Remove the database after the testing, including the WAL files.
	t.Cleanup(func() {
		os.Remove(dbpath)
		os.Remove(dbpath + "-wal")
		os.Remove(dbpath + "-shm")
	})

	cfg := NewConfig()
	cfg.DatabaseURL = "sqlite3://" + dbpath

	// Start a fresh database.
	d, err := NewDatabase(cfg)
	if err != nil {
		t.Fatal("Failed to create a database:", err)
	}

	t.Cleanup(func() { d.Close() })

	return d
}

func TestDatabase(t *testing.T) {
	d := newTestDatabase(t)

	if d.Dialect() != "sqlite" {
		t.Fatal("Unexpected dialect:", d.Dialect())
	}

	t.Run("Reopen", func(t *testing.T) {
		// Migrations must not run twice.
		cfg := d.Config

		d2, err := NewDatabase(cfg)
		if err != nil {
			t.Fatal("Failed to reopen database:", err)
		}
		defer d2.Close()

		v, err := d2.dialect.version(context.Background(), d2.DB)
		if err != nil {
			t.Fatal("Failed to get version:", err)
		}

		if v != len(sqlite.migrations) {
			t.Fatalf("Unexpected schema version %d, expected %d", v, len(sqlite.migrations))
		}
	})
}

func TestParseURL(t *testing.T) {
	var tests = []struct {
		url    string
		driver string
		source string
	}{
		{
			"postgres://u:p@localhost:5432/blog?sslmode=disable",
			"pgx",
			"postgres://u:p@localhost:5432/blog?sslmode=disable",
		},
		{
			"postgresql://localhost/blog",
			"pgx",
			"postgresql://localhost/blog",
		},
		{
			"sqlite3:///var/lib/smolblog/blog.db",
			"sqlite3",
			"/var/lib/smolblog/blog.db?_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			"sqlite://blog.db?cache=shared",
			"sqlite3",
			"blog.db?cache=shared&_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			"blog.db",
			"sqlite3",
			"blog.db?_busy_timeout=5000&_journal_mode=WAL",
		},
	}

	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			dl, source := parseURL(test.url)
			if dl.driver != test.driver {
				t.Errorf("Unexpected driver %q, expected %q", dl.driver, test.driver)
			}
			if source != test.source {
				t.Errorf("Unexpected source %q, expected %q", source, test.source)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := NewConfig()

	if _, err := NewDatabase(cfg); err == nil {
		t.Fatal("Unexpected nil error with missing database URL")
	}

	cfg.DatabaseURL = "blog.db"
	cfg.MaxConns = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Unexpected nil error with no connections")
	}
}
