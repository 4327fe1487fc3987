package store

import (
	"context"
	"time"
)

// ClassificationCacheEntry is a content-addressed classifier memo.
type ClassificationCacheEntry struct {
	Hash       string
	Category   string
	Confidence float64
	Model      string
	ExpiresAt  time.Time
}

func (s *Store) GetClassificationCache(ctx context.Context, hash string) (*ClassificationCacheEntry, error) {
	return s.driver.GetClassificationCache(ctx, hash)
}

func (s *Store) UpsertClassificationCache(ctx context.Context, entry *ClassificationCacheEntry) error {
	return s.driver.UpsertClassificationCache(ctx, entry)
}
