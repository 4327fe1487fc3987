// Package postgres implements store.Driver over github.com/lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/store/migrations"
)

// DB implements store.Driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
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
	entries, err := migrations.Postgres.ReadDir("postgres")
	if err != nil {
		return errors.Wrap(err, "failed to read embedded postgres migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := migrations.Postgres.ReadFile("postgres/" + name)
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

// placeholder returns the n-th (1-based) positional placeholder for
// postgres's $N style.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}
