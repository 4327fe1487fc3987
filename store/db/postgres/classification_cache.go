package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) GetClassificationCache(ctx context.Context, hash string) (*store.ClassificationCacheEntry, error) {
	e := &store.ClassificationCacheEntry{}
	stmt := `SELECT hash, category, confidence, model, expires_at FROM classification_cache WHERE hash = ` + placeholder(1)
	err := d.db.QueryRowContext(ctx, stmt, hash).Scan(&e.Hash, &e.Category, &e.Confidence, &e.Model, &e.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get classification cache entry: %w", err)
	}
	return e, nil
}

func (d *DB) UpsertClassificationCache(ctx context.Context, entry *store.ClassificationCacheEntry) error {
	stmt := `INSERT INTO classification_cache (hash, category, confidence, model, expires_at)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (hash) DO UPDATE SET category = EXCLUDED.category, confidence = EXCLUDED.confidence,
		model = EXCLUDED.model, expires_at = EXCLUDED.expires_at`
	if _, err := d.db.ExecContext(ctx, stmt, entry.Hash, entry.Category, entry.Confidence, entry.Model, entry.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert classification cache entry: %w", err)
	}
	return nil
}
