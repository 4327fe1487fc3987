package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avito-tech/accountant-sla/store"
)

func marshalStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalStrings(s string) []string {
	var v []string
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

func marshalInt64s(v []int64) string {
	if v == nil {
		v = []int64{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalInt64s(s string) []int64 {
	var v []int64
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	fields := []string{"transport_chat_id", "type", "title", "assigned_accountant_id",
		"accountant_usernames", "sla_threshold_minutes", "monitoring_enabled", "is_24x7",
		"manager_telegram_ids", "created_ts", "updated_ts"}
	args := []any{create.TransportChatID, create.Type, create.Title, create.AssignedAccountantID,
		marshalStrings(create.AccountantUsernames), create.SLAThresholdMinutes, create.MonitoringEnabled, create.Is24x7,
		marshalInt64s(create.ManagerTelegramIDs), create.CreatedTs, create.UpdatedTs}

	stmt := `INSERT INTO chat (` + strings.Join(fields, ", ") + `) VALUES (` + placeholders(len(args)) + `) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return create, nil
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"1 = 1"}, []any{}
	if !find.IncludeDeleted {
		where = append(where, "deleted_ts IS NULL")
	}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.TransportChatID != nil {
		where, args = append(where, "transport_chat_id = "+placeholder(len(args)+1)), append(args, *find.TransportChatID)
	}
	if find.MonitoringEnabled != nil {
		where, args = append(where, "monitoring_enabled = "+placeholder(len(args)+1)), append(args, *find.MonitoringEnabled)
	}

	query := `SELECT id, transport_chat_id, type, title, assigned_accountant_id, accountant_usernames,
		sla_threshold_minutes, monitoring_enabled, is_24x7, manager_telegram_ids, created_ts, updated_ts, deleted_ts
		FROM chat WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var list []*store.Chat
	for rows.Next() {
		c := &store.Chat{}
		var usernames, managerIDs string
		if err := rows.Scan(&c.ID, &c.TransportChatID, &c.Type, &c.Title, &c.AssignedAccountantID, &usernames,
			&c.SLAThresholdMinutes, &c.MonitoringEnabled, &c.Is24x7, &managerIDs, &c.CreatedTs, &c.UpdatedTs, &c.DeletedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		c.AccountantUsernames = unmarshalStrings(usernames)
		c.ManagerTelegramIDs = unmarshalInt64s(managerIDs)
		list = append(list, c)
	}
	return list, rows.Err()
}

func (d *DB) UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error) {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.AssignedAccountantID != nil {
		set, args = append(set, "assigned_accountant_id = "+placeholder(len(args)+1)), append(args, *update.AssignedAccountantID)
	}
	if update.AccountantUsernames != nil {
		set, args = append(set, "accountant_usernames = "+placeholder(len(args)+1)), append(args, marshalStrings(*update.AccountantUsernames))
	}
	if update.SLAThresholdMinutes != nil {
		set, args = append(set, "sla_threshold_minutes = "+placeholder(len(args)+1)), append(args, *update.SLAThresholdMinutes)
	}
	if update.MonitoringEnabled != nil {
		set, args = append(set, "monitoring_enabled = "+placeholder(len(args)+1)), append(args, *update.MonitoringEnabled)
	}
	if update.Is24x7 != nil {
		set, args = append(set, "is_24x7 = "+placeholder(len(args)+1)), append(args, *update.Is24x7)
	}
	if update.ManagerTelegramIDs != nil {
		set, args = append(set, "manager_telegram_ids = "+placeholder(len(args)+1)), append(args, marshalInt64s(*update.ManagerTelegramIDs))
	}
	if update.DeletedTs != nil {
		set, args = append(set, "deleted_ts = "+placeholder(len(args)+1)), append(args, *update.DeletedTs)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE chat SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, transport_chat_id, type, title, assigned_accountant_id, accountant_usernames,
		sla_threshold_minutes, monitoring_enabled, is_24x7, manager_telegram_ids, created_ts, updated_ts, deleted_ts`

	c := &store.Chat{}
	var usernames, managerIDs string
	err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&c.ID, &c.TransportChatID, &c.Type, &c.Title, &c.AssignedAccountantID,
		&usernames, &c.SLAThresholdMinutes, &c.MonitoringEnabled, &c.Is24x7, &managerIDs, &c.CreatedTs, &c.UpdatedTs, &c.DeletedTs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat not found")
		}
		return nil, fmt.Errorf("failed to update chat: %w", err)
	}
	c.AccountantUsernames = unmarshalStrings(usernames)
	c.ManagerTelegramIDs = unmarshalInt64s(managerIDs)
	return c, nil
}

func (d *DB) DeleteChat(ctx context.Context, del *store.DeleteChat) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM chat WHERE id = `+placeholder(1), del.ID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("chat not found")
	}
	return nil
}
