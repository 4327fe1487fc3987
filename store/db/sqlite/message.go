package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avito-tech/accountant-sla/store"
)

func (d *DB) CreateChatMessage(ctx context.Context, create *store.CreateChatMessage) (*store.ChatMessage, error) {
	m := &store.ChatMessage{
		ChatID: create.ChatID, MessageID: create.MessageID, EditVersion: create.EditVersion,
		SenderTelegramID: create.SenderTelegramID, SenderUsername: create.SenderUsername, Text: create.Text,
		IsAccountant: create.IsAccountant, ReplyToMessageID: create.ReplyToMessageID, MessageType: create.MessageType,
		TransportTimestamp: create.TransportTimestamp, CreatedTs: nowUnix(),
	}
	stmt := `INSERT INTO chat_message (chat_id, message_id, edit_version, sender_telegram_id, sender_username,
		text, is_accountant, reply_to_message_id, message_type, transport_timestamp, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := d.db.ExecContext(ctx, stmt, m.ChatID, m.MessageID, m.EditVersion, m.SenderTelegramID, m.SenderUsername,
		m.Text, m.IsAccountant, m.ReplyToMessageID, m.MessageType, m.TransportTimestamp, m.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create chat message: %w", err)
	}
	return m, nil
}

func (d *DB) LatestEditVersion(ctx context.Context, chatID, messageID int64) (int, error) {
	var version sql.NullInt64
	stmt := `SELECT MAX(edit_version) FROM chat_message WHERE chat_id = ? AND message_id = ?`
	if err := d.db.QueryRowContext(ctx, stmt, chatID, messageID).Scan(&version); err != nil {
		return -1, fmt.Errorf("failed to query latest edit version: %w", err)
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

func (d *DB) ListChatMessageVersions(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	stmt := `SELECT chat_id, message_id, edit_version, sender_telegram_id, sender_username, text, is_accountant,
		reply_to_message_id, message_type, transport_timestamp, created_ts FROM chat_message
		WHERE chat_id = ? AND message_id = ? ORDER BY edit_version`
	rows, err := d.db.QueryContext(ctx, stmt, find.ChatID, find.MessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat message versions: %w", err)
	}
	defer rows.Close()

	var list []*store.ChatMessage
	for rows.Next() {
		m := &store.ChatMessage{}
		if err := rows.Scan(&m.ChatID, &m.MessageID, &m.EditVersion, &m.SenderTelegramID, &m.SenderUsername, &m.Text,
			&m.IsAccountant, &m.ReplyToMessageID, &m.MessageType, &m.TransportTimestamp, &m.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
