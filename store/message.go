package store

import (
	"context"
	"time"
)

// ChatMessage is one immutable row in the append-only inbound message log.
// Primary key is (ChatID, MessageID, EditVersion); edits never overwrite a
// prior row, they append at EditVersion+1.
type ChatMessage struct {
	ChatID              int64
	MessageID           int64
	EditVersion         int
	SenderTelegramID    int64
	SenderUsername      string
	Text                string
	IsAccountant        bool
	ReplyToMessageID    *int64
	MessageType         string
	TransportTimestamp  time.Time
	CreatedTs           int64
}

type CreateChatMessage struct {
	ChatID             int64
	MessageID          int64
	EditVersion        int
	SenderTelegramID   int64
	SenderUsername     string
	Text               string
	IsAccountant       bool
	ReplyToMessageID   *int64
	MessageType        string
	TransportTimestamp time.Time
}

type FindChatMessage struct {
	ChatID    int64
	MessageID int64
}

func (s *Store) CreateChatMessage(ctx context.Context, create *CreateChatMessage) (*ChatMessage, error) {
	return s.driver.CreateChatMessage(ctx, create)
}

// LatestEditVersion returns the highest EditVersion stored for (chatID,
// messageID), or -1 if no row exists.
func (s *Store) LatestEditVersion(ctx context.Context, chatID, messageID int64) (int, error) {
	return s.driver.LatestEditVersion(ctx, chatID, messageID)
}

func (s *Store) ListChatMessageVersions(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessageVersions(ctx, find)
}
