// Package chatapp defines the transport-agnostic chat channel contract:
// consuming inbound webhook events and sending outbound alert
// notifications. Telegram is the only implementation required by this
// engine; the interface stays narrow enough that another transport could
// implement it without touching the ingest or delivery packages.
package chatapp

import (
	"context"
	"time"

	"github.com/avito-tech/accountant-sla/delivery"
)

// Message is a parsed inbound chat message, identified by the
// transport's own chat and message ids (not yet resolved against the
// monitored-chat table).
type Message struct {
	TransportChatID    int64
	MessageID          int64
	SenderTelegramID   int64
	SenderUsername     string
	Text               string
	IsEdit             bool
	ReplyToMessageID   *int64
	MessageType        string
	TransportTimestamp time.Time
}

// Callback is a parsed inline-keyboard callback-query event.
type Callback struct {
	CallbackQueryID  string
	AlertID          int64
	Action           delivery.KeyboardAction
	FromTelegramID   int64
	TransportChatID  int64
}

// Update is the result of parsing one webhook payload: exactly one of
// Message or Callback is set.
type Update struct {
	Message  *Message
	Callback *Callback
}

// Channel is the capability the ingest and delivery layers need from a
// chat transport.
type Channel interface {
	// Name identifies the transport, e.g. "telegram".
	Name() string

	// ValidateSecret performs a constant-time comparison of the webhook
	// header value against the configured shared secret.
	ValidateSecret(headerValue string) bool

	// ParseUpdate decodes one webhook request body.
	ParseUpdate(ctx context.Context, body []byte) (*Update, error)

	// SendText delivers a message to a user id (DM) or, when recipientID
	// refers to a group, a group-visible message. Implementations satisfy
	// delivery.Sender.
	SendText(ctx context.Context, recipientTelegramID int64, text string, keyboard []delivery.KeyboardButton) (messageID int64, err error)

	// SendGroupMention posts a message to a group chat that @-mentions
	// username, used as the DM-delivery fallback.
	SendGroupMention(ctx context.Context, transportChatID int64, username, text string) error

	// AnswerCallback acknowledges an inline-keyboard callback query so the
	// client stops showing its loading spinner.
	AnswerCallback(ctx context.Context, callbackQueryID, text string) error

	Close() error
}

var _ delivery.Notifier = Channel(nil)
