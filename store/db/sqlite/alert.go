package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) CreateSlaAlert(ctx context.Context, create *store.CreateSlaAlert) (*store.SlaAlert, error) {
	now := nowUnix()
	a := &store.SlaAlert{
		UID: create.UID, RequestID: create.RequestID, AlertType: create.AlertType,
		EscalationLevel: create.EscalationLevel, MinutesElapsed: create.MinutesElapsed,
		ManagerTelegramID: create.ManagerTelegramID, DeliveryStatus: store.DeliveryStatusPending,
		CreatedTs: now, UpdatedTs: now,
	}
	stmt := `INSERT INTO sla_alert (uid, request_id, alert_type, escalation_level, minutes_elapsed,
		manager_telegram_id, delivery_status, created_ts, updated_ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := d.db.ExecContext(ctx, stmt, a.UID, a.RequestID, a.AlertType, a.EscalationLevel, a.MinutesElapsed,
		a.ManagerTelegramID, a.DeliveryStatus, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create sla alert: %w", err)
	}
	a.ID, _ = result.LastInsertId()
	return a, nil
}

func (d *DB) ListSlaAlerts(ctx context.Context, find *store.FindSlaAlert) ([]*store.SlaAlert, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.RequestID != nil {
		where, args = append(where, "request_id = ?"), append(args, *find.RequestID)
	}
	if find.EscalationLevel != nil {
		where, args = append(where, "escalation_level = ?"), append(args, *find.EscalationLevel)
	}
	if find.UnresolvedOnly {
		where = append(where, "resolved_action IS NULL")
	}

	query := `SELECT id, uid, request_id, alert_type, escalation_level, minutes_elapsed, manager_telegram_id,
		alert_sent_at, delivery_status, telegram_message_id, resolved_action, acknowledged_by, acknowledged_at,
		resolution_notes, created_ts, updated_ts FROM sla_alert WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sla alerts: %w", err)
	}
	defer rows.Close()

	var list []*store.SlaAlert
	for rows.Next() {
		a := &store.SlaAlert{}
		if err := rows.Scan(&a.ID, &a.UID, &a.RequestID, &a.AlertType, &a.EscalationLevel, &a.MinutesElapsed,
			&a.ManagerTelegramID, &a.AlertSentAt, &a.DeliveryStatus, &a.TelegramMessageID, &a.ResolvedAction,
			&a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolutionNotes, &a.CreatedTs, &a.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan sla alert: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (d *DB) UpdateSlaAlert(ctx context.Context, update *store.UpdateSlaAlert) (*store.SlaAlert, error) {
	set, args := []string{"updated_ts = ?"}, []any{nowUnix()}
	if update.AlertSentAt != nil {
		set, args = append(set, "alert_sent_at = ?"), append(args, *update.AlertSentAt)
	}
	if update.DeliveryStatus != nil {
		set, args = append(set, "delivery_status = ?"), append(args, *update.DeliveryStatus)
	}
	if update.TelegramMessageID != nil {
		set, args = append(set, "telegram_message_id = ?"), append(args, *update.TelegramMessageID)
	}
	if update.ResolvedAction != nil {
		set, args = append(set, "resolved_action = ?"), append(args, *update.ResolvedAction)
	}
	if update.AcknowledgedBy != nil {
		set, args = append(set, "acknowledged_by = ?"), append(args, *update.AcknowledgedBy)
	}
	if update.AcknowledgedAt != nil {
		set, args = append(set, "acknowledged_at = ?"), append(args, *update.AcknowledgedAt)
	}
	if update.ResolutionNotes != nil {
		set, args = append(set, "resolution_notes = ?"), append(args, *update.ResolutionNotes)
	}

	args = append(args, update.ID)
	stmt := `UPDATE sla_alert SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update sla alert: %w", err)
	}

	id := update.ID
	list, err := d.ListSlaAlerts(ctx, &store.FindSlaAlert{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("sla alert not found")
	}
	return list[0], nil
}
