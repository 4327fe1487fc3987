package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) CreateClientRequest(ctx context.Context, create *store.CreateClientRequest) (*store.ClientRequest, error) {
	now := nowUnix()
	r := &store.ClientRequest{
		UID: create.UID, ChatID: create.ChatID, MessageID: create.MessageID, EditVersion: create.EditVersion,
		Status: store.RequestStatusPending, ReceivedAt: create.ReceivedAt, Category: create.Category,
		Confidence: create.Confidence, ClassifierModel: create.ClassifierModel, ThresholdMinutes: create.ThresholdMinutes,
		CreatedTs: now, UpdatedTs: now,
	}
	stmt := `INSERT INTO client_request (uid, chat_id, message_id, edit_version, status, received_at, category,
		confidence, classifier_model, threshold_minutes, sla_breached, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := d.db.ExecContext(ctx, stmt, r.UID, r.ChatID, r.MessageID, r.EditVersion, r.Status, r.ReceivedAt,
		r.Category, r.Confidence, r.ClassifierModel, r.ThresholdMinutes, false, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create client request: %w", err)
	}
	r.ID, _ = result.LastInsertId()
	return r, nil
}

func (d *DB) ListClientRequests(ctx context.Context, find *store.FindClientRequest) ([]*store.ClientRequest, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.ChatID != nil {
		where, args = append(where, "chat_id = ?"), append(args, *find.ChatID)
	}
	if find.Status != nil {
		where, args = append(where, "status = ?"), append(args, *find.Status)
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
		query += ` LIMIT ?`
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
	set, args := []string{"updated_ts = ?"}, []any{nowUnix()}
	if update.Status != nil {
		set, args = append(set, "status = ?"), append(args, *update.Status)
	}
	if update.SlaTimerStartedAt != nil {
		set, args = append(set, "sla_timer_started_at = ?"), append(args, *update.SlaTimerStartedAt)
	}
	if update.ClearSlaTimerPaused {
		set = append(set, "sla_timer_paused_at = NULL")
	} else if update.SlaTimerPausedAt != nil {
		set, args = append(set, "sla_timer_paused_at = ?"), append(args, *update.SlaTimerPausedAt)
	}
	if update.SlaBreached != nil {
		set, args = append(set, "sla_breached = ?"), append(args, *update.SlaBreached)
	}
	if update.ResponseAt != nil {
		set, args = append(set, "response_at = ?"), append(args, *update.ResponseAt)
	}
	if update.ResponseTimeMinutes != nil {
		set, args = append(set, "response_time_minutes = ?"), append(args, *update.ResponseTimeMinutes)
	}
	if update.ResponseMessageID != nil {
		set, args = append(set, "response_message_id = ?"), append(args, *update.ResponseMessageID)
	}
	if update.RespondedBy != nil {
		set, args = append(set, "responded_by = ?"), append(args, *update.RespondedBy)
	}
	if update.SlaWorkingMinutes != nil {
		set, args = append(set, "sla_working_minutes = ?"), append(args, *update.SlaWorkingMinutes)
	}

	args = append(args, update.ID)
	stmt := `UPDATE client_request SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to update client request: %w", err)
	}

	id := update.ID
	return d.GetClientRequest(ctx, &id)
}

func (d *DB) GetClientRequest(ctx context.Context, id *int64) (*store.ClientRequest, error) {
	list, err := d.ListClientRequests(ctx, &store.FindClientRequest{ID: id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("client request not found")
	}
	return list[0], nil
}
