package rpcapi

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avito-tech/accountant-sla/delivery"
	"github.com/avito-tech/accountant-sla/ingest"
	"github.com/avito-tech/accountant-sla/store"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleWebhook is the single inbound entrypoint for the chat transport:
// it validates the shared secret, parses the update, and dispatches to
// either the ingest pipeline or the callback handler.
func (s *Server) handleWebhook(c echo.Context) error {
	if !s.Channel.ValidateSecret(c.Request().Header.Get(telegramSecretHeader)) {
		s.Metrics.RecordWebhookSignatureFailure()
		return writeError(c, http.StatusUnauthorized, "Unauthorized", "INVALID_WEBHOOK_SIGNATURE")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "Bad Request", "BAD_REQUEST")
	}

	update, err := s.Channel.ParseUpdate(c.Request().Context(), body)
	if err != nil {
		slog.Warn("failed to parse inbound webhook update", "error", err)
		return writeError(c, http.StatusBadRequest, "Bad Request", "BAD_REQUEST")
	}

	ctx := c.Request().Context()
	switch {
	case update.Message != nil:
		m := update.Message
		chat, err := s.Store.GetChat(ctx, &store.FindChat{TransportChatID: &m.TransportChatID})
		if err != nil {
			slog.Error("failed to resolve chat for inbound message", "error", err)
			break
		}
		if chat == nil {
			// Unregistered chat: nothing to track until an operator calls registerChat.
			break
		}
		if _, err := s.Ingest.HandleMessage(ctx, ingest.MessageEvent{
			ChatID:             chat.ID,
			TransportChatID:    m.TransportChatID,
			MessageID:          m.MessageID,
			SenderTelegramID:   m.SenderTelegramID,
			SenderUsername:     m.SenderUsername,
			Text:               m.Text,
			IsEdit:             m.IsEdit,
			ReplyToMessageID:   m.ReplyToMessageID,
			MessageType:        m.MessageType,
			TransportTimestamp: m.TransportTimestamp,
		}); err != nil {
			slog.Error("failed to handle inbound message", "error", err)
		}
	case update.Callback != nil:
		cb := update.Callback
		if err := s.Callback.Handle(ctx, delivery.CallbackAction{
			AlertID:        cb.AlertID,
			Action:         cb.Action,
			FromTelegramID: cb.FromTelegramID,
		}); err != nil {
			slog.Error("failed to handle inbound callback", "error", err)
		}
		if err := s.Channel.AnswerCallback(ctx, cb.CallbackQueryID, ""); err != nil {
			slog.Warn("failed to answer callback query", "error", err)
		}
	}

	return c.NoContent(http.StatusOK)
}
