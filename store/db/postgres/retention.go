package postgres

import (
	"context"
	"fmt"
	"time"
)

func (d *DB) PurgeExpiredClassificationCache(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM classification_cache WHERE expires_at < `+placeholder(1), before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired classification cache: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (d *DB) PurgeOldChatMessages(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM chat_message WHERE transport_timestamp < `+placeholder(1), before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old chat messages: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (d *DB) PurgeClosedClientRequests(ctx context.Context, before time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM client_request
		WHERE status IN ('answered', 'closed') AND created_ts < `+placeholder(1), before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge closed client requests: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
