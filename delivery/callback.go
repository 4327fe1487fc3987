package delivery

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/store"
)

// Notifier is the capability the callback handler needs beyond Sender: a
// DM attempt and a group-mention fallback when the DM cannot be delivered
// (e.g. the accountant has never started a conversation with the bot).
type Notifier interface {
	Sender
	SendGroupMention(ctx context.Context, transportChatID int64, username, text string) error
}

// CallbackAction mirrors chatapp.Callback without importing chatapp, to
// keep delivery from depending on a specific transport package.
type CallbackAction struct {
	AlertID        int64
	Action         KeyboardAction
	FromTelegramID int64
}

type CallbackHandler struct {
	store    *store.Store
	alerts   *alert.Service
	notifier Notifier
}

func NewCallbackHandler(st *store.Store, alerts *alert.Service, notifier Notifier) *CallbackHandler {
	return &CallbackHandler{store: st, alerts: alerts, notifier: notifier}
}

// Handle routes an inline-keyboard action to either the resolve path or
// the accountant-notification path.
func (h *CallbackHandler) Handle(ctx context.Context, action CallbackAction) error {
	switch action.Action {
	case ActionMarkResolved:
		userID := action.FromTelegramID
		return h.alerts.ResolveAlert(ctx, action.AlertID, store.ResolvedActionMarkResolved, &userID)
	case ActionNotifyAccountant:
		return h.notifyAccountant(ctx, action.AlertID)
	default:
		return errors.Errorf("unknown callback action %q", action.Action)
	}
}

// notifyAccountant pings the chat's assigned accountant about a breached
// request, preferring a direct message and falling back to an @-mention
// in the group if the DM cannot be delivered.
func (h *CallbackHandler) notifyAccountant(ctx context.Context, alertID int64) error {
	a, err := h.store.GetSlaAlert(ctx, &store.FindSlaAlert{ID: &alertID})
	if err != nil {
		return errors.Wrap(err, "failed to load alert")
	}
	if a == nil {
		return errors.Errorf("alert %d not found", alertID)
	}
	req, err := h.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &a.RequestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return errors.Errorf("client request %d not found", a.RequestID)
	}
	chat, err := h.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return errors.Errorf("chat %d not found", req.ChatID)
	}

	text := fmt.Sprintf("Напоминание: клиент ждёт ответа уже %.0f мин (порог %d мин).", a.MinutesElapsed, req.ThresholdMinutes)

	if chat.AssignedAccountantID != 0 {
		if _, err := h.notifier.SendText(ctx, chat.AssignedAccountantID, text, nil); err == nil {
			return nil
		}
	}

	var username string
	if len(chat.AccountantUsernames) > 0 {
		username = chat.AccountantUsernames[0]
	}
	return h.notifier.SendGroupMention(ctx, chat.TransportChatID, username, text)
}
