package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) CreateClientRequest(ctx context.Context, create *store.CreateClientRequest) (*store.ClientRequest, error) {
	r := &store.ClientRequest{
		UID: create.UID, ChatID: create.ChatID, MessageID: create.MessageID, EditVersion: create.EditVersion,
		Status: store.RequestStatusPending, ReceivedAt: create.ReceivedAt, Category: create.Category,
		Confidence: create.Confidence, ClassifierModel: create.ClassifierModel, ThresholdMinutes: create.ThresholdMinutes,
	}
	now := nowUnix()
	stmt := `INSERT INTO client_request (uid, chat_id, message_id, edit_version, status, received_at, category,
		confidence, classifier_model, threshold_minutes, sla_breached, created_ts, updated_ts)
		VALUES (` + placeholders(13) + `) RETURNING id, created_ts, updated_ts`
	err := d.db.QueryRowContext(ctx, stmt, r.UID, r.ChatID, r.MessageID, r.EditVersion, r.Status, r.ReceivedAt,
		r.Category, r.Confidence, r.ClassifierModel, r.ThresholdMinutes, false, now, now).Scan(&r.ID, &r.CreatedTs, &r.UpdatedTs)
	if err != nil {
		return nil, fmt.Errorf("failed to create client request: %w", err)
	}
	return r, nil
}

func (d *DB) ListClientRequests(ctx context.Context, find *store.FindClientRequest) ([]*store.ClientRequest, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.ChatID != nil {
		where, args = append(where, "chat_id = "+placeholder(len(args)+1)), append(args, *find.ChatID)
	}
	if find.Status != nil {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, *find.Status)
	}
	if find.OpenOnly {
		where = append(where, "status NOT IN ('answered', 'closed')")
	}

	order := "id DESC"
	if find.OrderByOldest {
		order = "id ASC"
	}
	query := `SELECT id, uid, chat_id, message_id, edit_version, status, received_at, category, confidence,
		classifier_model, threshold_minutes, sla_timer_started_at, sla_timer_paused_at, sla_breached, response_at,
		response_time_minutes, response_message_id, responded_by, sla_working_minutes, created_ts, updated_ts
		FROM client_request WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + order
	if find.Limit > 0 {
		args = append(args, find.Limit)
		query += fmt.Sprintf(" LIMIT %s", placeholder(len(args)))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list client requests: %w", err)
	}
	defer rows.Close()

	var list []*store.ClientRequest
	for rows.Next() {
		r := &store.ClientRequest{}
		if err := rows.Scan(&r.ID, &r.UID, &r.ChatID, &r.MessageID, &r.EditVersion, &r.Status, &r.ReceivedAt,
			&r.Category, &r.Confidence, &r.ClassifierModel, &r.ThresholdMinutes, &r.SlaTimerStartedAt, &r.SlaTimerPausedAt,
			&r.SlaBreached, &r.ResponseAt, &r.ResponseTimeMinutes, &r.ResponseMessageID, &r.RespondedBy,
			&r.SlaWorkingMinutes, &r.CreatedTs, &r.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan client request: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func (d *DB) UpdateClientRequest(ctx context.Context, update *store.UpdateClientRequest) (*store.ClientRequest, error) {
	set, args := []string{"updated_ts = " + placeholder(1)}, []any{nowUnix()}
	if update.Status != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *update.Status)
	}
	if update.SlaTimerStartedAt != nil {
		set, args = append(set, "sla_timer_started_at = "+placeholder(len(args)+1)), append(args, *update.SlaTimerStartedAt)
	}
	if update.ClearSlaTimerPaused {
		set = append(set, "sla_timer_paused_at = NULL")
	} else if update.SlaTimerPausedAt != nil {
		set, args = append(set, "sla_timer_paused_at = "+placeholder(len(args)+1)), append(args, *update.SlaTimerPausedAt)
	}
	if update.SlaBreached != nil {
		set, args = append(set, "sla_breached = "+placeholder(len(args)+1)), append(args, *update.SlaBreached)
	}
	if update.ResponseAt != nil {
		set, args = append(set, "response_at = "+placeholder(len(args)+1)), append(args, *update.ResponseAt)
	}
	if update.ResponseTimeMinutes != nil {
		set, args = append(set, "response_time_minutes = "+placeholder(len(args)+1)), append(args, *update.ResponseTimeMinutes)
	}
	if update.ResponseMessageID != nil {
		set, args = append(set, "response_message_id = "+placeholder(len(args)+1)), append(args, *update.ResponseMessageID)
	}
	if update.RespondedBy != nil {
		set, args = append(set, "responded_by = "+placeholder(len(args)+1)), append(args, *update.RespondedBy)
	}
	if update.SlaWorkingMinutes != nil {
		set, args = append(set, "sla_working_minutes = "+placeholder(len(args)+1)), append(args, *update.SlaWorkingMinutes)
	}

	args = append(args, update.ID)
	stmt := `UPDATE client_request SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, chat_id, message_id, edit_version, status, received_at, category, confidence,
		classifier_model, threshold_minutes, sla_timer_started_at, sla_timer_paused_at, sla_breached, response_at,
		response_time_minutes, response_message_id, responded_by, sla_working_minutes, created_ts, updated_ts`

	r := &store.ClientRequest{}
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&r.ID, &r.UID, &r.ChatID, &r.MessageID, &r.EditVersion,
		&r.Status, &r.ReceivedAt, &r.Category, &r.Confidence, &r.ClassifierModel, &r.ThresholdMinutes,
		&r.SlaTimerStartedAt, &r.SlaTimerPausedAt, &r.SlaBreached, &r.ResponseAt, &r.ResponseTimeMinutes,
		&r.ResponseMessageID, &r.RespondedBy, &r.SlaWorkingMinutes, &r.CreatedTs, &r.UpdatedTs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("client request not found")
		}
		return nil, fmt.Errorf("failed to update client request: %w", err)
	}
	return r, nil
}
