package db

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DBConfig struct {
	// DatabaseURL is either a postgres:// URL or an SQLite path, optionally
	// prefixed with sqlite3://. $DATABASE_URL overrides it.
	DatabaseURL string `toml:"databaseURL"`
	// MaxConns bounds the connection pool. Requests wait for a free
	// connection once it is exhausted.
	MaxConns int `toml:"maxConns"`
}

func NewConfig() DBConfig {
	return DBConfig{
		MaxConns: 5,
	}
}

func (c *DBConfig) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("missing `databaseURL' value or $DATABASE_URL")
	}

	if c.MaxConns < 1 {
		return errors.New("`maxConns' must be at least 1")
	}

	return nil
}

type Database struct {
	*sqlx.DB
	Config  DBConfig
	dialect dialect
}

// NewDatabase connects to the database and runs all pending migrations.
func NewDatabase(config DBConfig) (*Database, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dl, source := parseURL(config.DatabaseURL)

	d, err := sqlx.Open(dl.driver, source)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %s db", dl.driver)
	}

	d.SetMaxOpenConns(config.MaxConns)
	d.SetMaxIdleConns(config.MaxConns)

	db := &Database{d, config, dl}

	if err := db.migrate(context.Background()); err != nil {
		d.Close()
		return nil, err
	}

	return db, nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

// Dialect returns the name of the database's SQL dialect.
func (d *Database) Dialect() string {
	return d.dialect.name
}

func (d *Database) migrate(ctx context.Context) error {
	v, err := d.dialect.version(ctx, d.DB)
	if err != nil {
		return errors.Wrap(err, "Failed to get schema version")
	}

	// If we're already up-to-date with all the migrations, then we're done.
	if v >= len(d.dialect.migrations) {
		return nil
	}

	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Failed to start a transaction for migrations")
	}
	// Rollback in the end even if we've failed, just in case.
	defer tx.Rollback()

	// Pick up from where the last run left off.
	for i := v; i < len(d.dialect.migrations); i++ {
		if _, err := tx.ExecContext(ctx, d.dialect.migrations[i]); err != nil {
			return errors.Wrapf(err, "Failed to migrate at step %d", i)
		}
	}

	if err := d.dialect.setVersion(ctx, tx, len(d.dialect.migrations)); err != nil {
		return errors.Wrap(err, "Failed to save schema version")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "Failed to save migration changes")
	}

	return nil
}

// parseURL picks the dialect from the database URL and returns the data source
// for its driver.
func parseURL(dbURL string) (dialect, string) {
	scheme, rest, ok := strings.Cut(dbURL, "://")
	if !ok {
		return sqlite, sqliteSource(dbURL)
	}

	switch scheme {
	case "postgres", "postgresql":
		return postgres, dbURL
	case "sqlite", "sqlite3":
		return sqlite, sqliteSource(rest)
	default:
		return sqlite, sqliteSource(dbURL)
	}
}

// sqliteSource adds the connection parameters needed for concurrent writers to
// wait on each other instead of failing with SQLITE_BUSY.
func sqliteSource(path string) string {
	const params = "_busy_timeout=5000&_journal_mode=WAL"

	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}
