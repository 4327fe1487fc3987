package store

import (
	"context"
	"time"
)

// PurgeExpiredClassificationCache deletes cache rows whose TTL has already
// elapsed. Unlike the other purge operations this ignores the retention
// horizon entirely — an expired cache entry is useless the moment it
// expires, not after GlobalSettings.DataRetentionDays.
func (s *Store) PurgeExpiredClassificationCache(ctx context.Context, before time.Time) (int64, error) {
	return s.driver.PurgeExpiredClassificationCache(ctx, before)
}

// PurgeOldChatMessages deletes append-only message log rows older than
// before, regardless of the request they accompanied.
func (s *Store) PurgeOldChatMessages(ctx context.Context, before time.Time) (int64, error) {
	return s.driver.PurgeOldChatMessages(ctx, before)
}

// PurgeClosedClientRequests deletes terminal client requests (answered or
// closed) created before the cutoff. Requests still pending, in progress,
// or escalated are never purged, however old, since they are the one thing
// an operator might come back to look for. Deleting a client_request
// cascades to its sla_alert rows.
func (s *Store) PurgeClosedClientRequests(ctx context.Context, before time.Time) (int64, error) {
	return s.driver.PurgeClosedClientRequests(ctx, before)
}
