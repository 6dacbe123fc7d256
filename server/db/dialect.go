package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type dialect struct {
	name       string
	driver     string
	migrations []string
	version    func(ctx context.Context, db *sqlx.DB) (int, error)
	setVersion func(ctx context.Context, tx *sqlx.Tx, v int) error
}

var postgres = dialect{
	name:   "postgres",
	driver: "pgx",
	migrations: []string{`
		CREATE TABLE blog_posts (
			id          SERIAL      PRIMARY KEY,
			username    TEXT        NOT NULL,
			content     TEXT        NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			image_path  TEXT,
			avatar_path TEXT
		);

		CREATE INDEX blog_posts_created_at ON blog_posts (created_at DESC);
	`},
	version: func(ctx context.Context, db *sqlx.DB) (int, error) {
		_, err := db.ExecContext(ctx,
			"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)",
		)
		if err != nil {
			return 0, err
		}

		var version int
		return version, db.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(version), 0) FROM schema_version",
		).Scan(&version)
	},
	setVersion: func(ctx context.Context, tx *sqlx.Tx, v int) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES ($1)", v)
		return err
	},
}

var sqlite = dialect{
	name:   "sqlite",
	driver: "sqlite3",
	migrations: []string{`
		CREATE TABLE blog_posts (
			id          INTEGER   PRIMARY KEY AUTOINCREMENT,
			username    TEXT      NOT NULL,
			content     TEXT      NOT NULL,
			-- Millisecond precision so that the feed order is stable.
			created_at  TIMESTAMP NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
			image_path  TEXT,
			avatar_path TEXT
		);

		CREATE INDEX blog_posts_created_at ON blog_posts (created_at DESC);
	`},
	version: func(ctx context.Context, db *sqlx.DB) (int, error) {
		var version int
		return version, db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	},
	setVersion: func(ctx context.Context, tx *sqlx.Tx, v int) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v))
		return err
	},
}
