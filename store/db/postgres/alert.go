package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) CreateSlaAlert(ctx context.Context, create *store.CreateSlaAlert) (*store.SlaAlert, error) {
	a := &store.SlaAlert{
		UID: create.UID, RequestID: create.RequestID, AlertType: create.AlertType,
		EscalationLevel: create.EscalationLevel, MinutesElapsed: create.MinutesElapsed,
		ManagerTelegramID: create.ManagerTelegramID, DeliveryStatus: store.DeliveryStatusPending,
	}
	now := nowUnix()
	stmt := `INSERT INTO sla_alert (uid, request_id, alert_type, escalation_level, minutes_elapsed,
		manager_telegram_id, delivery_status, created_ts, updated_ts)
		VALUES (` + placeholders(9) + `) RETURNING id, created_ts, updated_ts`
	err := d.db.QueryRowContext(ctx, stmt, a.UID, a.RequestID, a.AlertType, a.EscalationLevel, a.MinutesElapsed,
		a.ManagerTelegramID, a.DeliveryStatus, now, now).Scan(&a.ID, &a.CreatedTs, &a.UpdatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to create sla alert: %w", err)
	}
	return a, nil
}

func (d *DB) ListSlaAlerts(ctx context.Context, find *store.FindSlaAlert) ([]*store.SlaAlert, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.RequestID != nil {
		where, args = append(where, "request_id = "+placeholder(len(args)+1)), append(args, *find.RequestID)
	}
	if find.EscalationLevel != nil {
		where, args = append(where, "escalation_level = "+placeholder(len(args)+1)), append(args, *find.EscalationLevel)
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
	set, args := []string{"updated_ts = " + placeholder(1)}, []any{nowUnix()}
	if update.AlertSentAt != nil {
		set, args = append(set, "alert_sent_at = "+placeholder(len(args)+1)), append(args, *update.AlertSentAt)
	}
	if update.DeliveryStatus != nil {
		set, args = append(set, "delivery_status = "+placeholder(len(args)+1)), append(args, *update.DeliveryStatus)
	}
	if update.TelegramMessageID != nil {
		set, args = append(set, "telegram_message_id = "+placeholder(len(args)+1)), append(args, *update.TelegramMessageID)
	}
	if update.ResolvedAction != nil {
		set, args = append(set, "resolved_action = "+placeholder(len(args)+1)), append(args, *update.ResolvedAction)
	}
	if update.AcknowledgedBy != nil {
		set, args = append(set, "acknowledged_by = "+placeholder(len(args)+1)), append(args, *update.AcknowledgedBy)
	}
	if update.AcknowledgedAt != nil {
		set, args = append(set, "acknowledged_at = "+placeholder(len(args)+1)), append(args, *update.AcknowledgedAt)
	}
	if update.ResolutionNotes != nil {
		set, args = append(set, "resolution_notes = "+placeholder(len(args)+1)), append(args, *update.ResolutionNotes)
	}

	args = append(args, update.ID)
	stmt := `UPDATE sla_alert SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, request_id, alert_type, escalation_level, minutes_elapsed, manager_telegram_id,
		alert_sent_at, delivery_status, telegram_message_id, resolved_action, acknowledged_by, acknowledged_at,
		resolution_notes, created_ts, updated_ts`

	a := &store.SlaAlert{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&a.ID, &a.UID, &a.RequestID, &a.AlertType, &a.EscalationLevel,
		&a.MinutesElapsed, &a.ManagerTelegramID, &a.AlertSentAt, &a.DeliveryStatus, &a.TelegramMessageID,
		&a.ResolvedAction, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolutionNotes, &a.CreatedTs, &a.UpdatedTs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sla alert not found")
		}
		return nil, fmt.Errorf("failed to update sla alert: %w", err)
	}
	return a, nil
}
