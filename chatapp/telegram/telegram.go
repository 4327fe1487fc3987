// Package telegram implements chatapp.Channel against the Telegram Bot
// API: webhook update parsing, secret validation, and outbound delivery
// (direct message preferred, group mention as a fallback).
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/chatapp"
	"github.com/avito-tech/accountant-sla/delivery"
)

// Config holds the Telegram-specific settings the channel needs.
type Config struct {
	BotToken     string
	WebhookSecret string
}

type Channel struct {
	bot    *tgbotapi.BotAPI
	secret string
}

func New(cfg Config) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot client")
	}
	return &Channel{bot: bot, secret: cfg.WebhookSecret}, nil
}

func (c *Channel) Name() string { return "telegram" }

// ValidateSecret compares headerValue against the configured webhook
// secret in constant time, so timing differences cannot be used to guess
// the secret byte by byte.
func (c *Channel) ValidateSecret(headerValue string) bool {
	if c.secret == "" || headerValue == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerValue), []byte(c.secret)) == 1
}

func (c *Channel) ParseUpdate(ctx context.Context, body []byte) (*chatapp.Update, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, errors.Wrap(err, "failed to decode telegram update")
	}

	if update.CallbackQuery != nil {
		cb, err := parseCallback(update.CallbackQuery)
		if err != nil {
			return nil, err
		}
		return &chatapp.Update{Callback: cb}, nil
	}

	var tgMsg *tgbotapi.Message
	isEdit := false
	switch {
	case update.Message != nil:
		tgMsg = update.Message
	case update.EditedMessage != nil:
		tgMsg = update.EditedMessage
		isEdit = true
	default:
		return nil, errors.New("unsupported update type")
	}
	if tgMsg == nil || tgMsg.From == nil {
		return nil, errors.New("update has no message sender")
	}

	var replyTo *int64
	if tgMsg.ReplyToMessage != nil {
		id := int64(tgMsg.ReplyToMessage.MessageID)
		replyTo = &id
	}

	return &chatapp.Update{Message: &chatapp.Message{
		TransportChatID:    tgMsg.Chat.ID,
		MessageID:          int64(tgMsg.MessageID),
		SenderTelegramID:   tgMsg.From.ID,
		SenderUsername:     tgMsg.From.UserName,
		Text:               tgMsg.Text,
		IsEdit:             isEdit,
		ReplyToMessageID:   replyTo,
		MessageType:        "text",
		TransportTimestamp: tgMsg.Time(),
	}}, nil
}

// parseCallback decodes the "notify_accountant:<alertId>" /
// "mark_resolved:<alertId>" callback data convention produced by
// delivery.AlertKeyboard.
func parseCallback(cb *tgbotapi.CallbackQuery) (*chatapp.Callback, error) {
	parts := strings.SplitN(cb.Data, ":", 2)
	if len(parts) != 2 {
		return nil, errors.Errorf("malformed callback data %q", cb.Data)
	}
	alertID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "callback data has non-numeric alert id")
	}

	var chatID int64
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}
	return &chatapp.Callback{
		CallbackQueryID: cb.ID,
		AlertID:         alertID,
		Action:          delivery.KeyboardAction(parts[0]),
		FromTelegramID:  cb.From.ID,
		TransportChatID: chatID,
	}, nil
}

func (c *Channel) SendText(ctx context.Context, recipientTelegramID int64, text string, keyboard []delivery.KeyboardButton) (int64, error) {
	msg := tgbotapi.NewMessage(recipientTelegramID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(keyboard) > 0 {
		msg.ReplyMarkup = buildInlineKeyboard(keyboard)
	}
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, errors.Wrap(err, "failed to send telegram message")
	}
	return int64(sent.MessageID), nil
}

func (c *Channel) SendGroupMention(ctx context.Context, transportChatID int64, username, text string) error {
	mention := text
	if username != "" {
		mention = fmt.Sprintf("@%s %s", username, text)
	}
	msg := tgbotapi.NewMessage(transportChatID, mention)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.bot.Send(msg)
	return errors.Wrap(err, "failed to send telegram group mention")
}

func (c *Channel) AnswerCallback(ctx context.Context, callbackQueryID, text string) error {
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackQueryID, text))
	if err != nil {
		slog.Warn("failed to answer telegram callback query", "error", err)
	}
	return err
}

func (c *Channel) Close() error { return nil }

func buildInlineKeyboard(buttons []delivery.KeyboardButton) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		data := fmt.Sprintf("%s:%d", b.Action, b.AlertID)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

var _ chatapp.Channel = (*Channel)(nil)
