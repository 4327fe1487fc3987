// Package delivery renders and sends SLA alert notifications, and routes
// their inline-keyboard callbacks back into the alert service.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/store"
)

// Sender is the minimal channel capability the delivery worker needs;
// chatapp.Channel implementations satisfy it.
type Sender interface {
	SendText(ctx context.Context, recipientTelegramID int64, text string, keyboard []KeyboardButton) (messageID int64, err error)
}

type Worker struct {
	store  *store.Store
	alerts *alert.Service
	sender Sender
}

func NewWorker(st *store.Store, alerts *alert.Service, sender Sender) *Worker {
	return &Worker{store: st, alerts: alerts, sender: sender}
}

// HandleSendAlert is the alerts-queue handler for both first-send
// (alert:send) and escalation re-sends, since both carry the same
// DeliveryPayload shape.
func (w *Worker) HandleSendAlert(ctx context.Context, payload []byte) error {
	var body alert.DeliveryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return errors.Wrap(err, "failed to unmarshal delivery payload")
	}

	a, err := w.store.GetSlaAlert(ctx, &store.FindSlaAlert{ID: &body.AlertID})
	if err != nil {
		return errors.Wrap(err, "failed to load alert")
	}
	if a == nil {
		return fmt.Errorf("alert %d not found", body.AlertID)
	}
	if a.ResolvedAction != nil {
		return nil
	}

	req, err := w.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &a.RequestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return fmt.Errorf("client request %d not found", a.RequestID)
	}
	chat, err := w.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return fmt.Errorf("chat %d not found", req.ChatID)
	}
	settings, err := w.store.GetGlobalSettings(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load global settings")
	}

	versions, err := w.store.ListChatMessageVersions(ctx, &store.FindChatMessage{ChatID: req.ChatID, MessageID: req.MessageID})
	if err != nil {
		return errors.Wrap(err, "failed to load source message")
	}
	preview, clientUsername := "", ""
	if len(versions) > 0 {
		latest := versions[len(versions)-1]
		preview = truncateRunes(latest.Text, settings.MessagePreviewLength)
		clientUsername = latest.SenderUsername
	}

	body2, err := RenderAlertBody(AlertView{
		ChatTitle: chat.Title, ElapsedMinutes: a.MinutesElapsed, ThresholdMinutes: req.ThresholdMinutes,
		MessagePreview: preview, ClientUsername: clientUsername, EscalationLevel: a.EscalationLevel,
		ChatDeepLink: fmt.Sprintf("tg://resolve?domain=&chat_id=%d", chat.TransportChatID),
	})
	if err != nil {
		return err
	}
	keyboard := AlertKeyboard(a.ID, "")

	messageID, sendErr := w.sender.SendText(ctx, a.ManagerTelegramID, body2, keyboard)
	if sendErr != nil {
		status := store.DeliveryStatusFailed
		_, _ = w.store.UpdateSlaAlert(ctx, &store.UpdateSlaAlert{ID: a.ID, DeliveryStatus: &status})
		return errors.Wrap(sendErr, "failed to send alert")
	}

	status := store.DeliveryStatusDelivered
	if _, err := w.store.UpdateSlaAlert(ctx, &store.UpdateSlaAlert{ID: a.ID, DeliveryStatus: &status, TelegramMessageID: &messageID}); err != nil {
		return errors.Wrap(err, "failed to record delivery")
	}

	if a.AlertType == store.AlertTypeWarning {
		return nil
	}
	return w.alerts.ScheduleNextEscalation(ctx, req.ID, a.EscalationLevel)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
