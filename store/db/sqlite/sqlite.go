// Package sqlite implements store.Driver over modernc.org/sqlite, for
// single-instance and local development deployments.
package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/pkg/errors"

	_ "modernc.org/sqlite"

	"github.com/avito-tech/accountant-sla/store/migrations"
)

// DB implements store.Driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite connection")
	}
	// modernc.org/sqlite serializes internally; a single writer connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping sqlite")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Migrate(ctx context.Context) error {
	entries, err := migrations.SQLite.ReadDir("sqlite")
	if err != nil {
		return errors.Wrap(err, "failed to read embedded sqlite migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := migrations.SQLite.ReadFile("sqlite/" + name)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", name)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := d.db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "failed to apply migration %s", name)
			}
		}
	}
	return nil
}

func splitStatements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			stmts = append(stmts, trimmed)
		}
	}
	return stmts
}

// placeholders returns n sqlite "?" positional markers, kept with the
// postgres driver's signature so entity files read the same across both
// drivers.
func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}
