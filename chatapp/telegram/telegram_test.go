package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/delivery"
)

func TestParseCallbackDecodesActionAndAlertID(t *testing.T) {
	cb := &tgbotapi.CallbackQuery{
		ID:   "cbq-1",
		Data: "mark_resolved:42",
		From: &tgbotapi.User{ID: 900},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100}},
	}
	parsed, err := parseCallback(cb)
	require.NoError(t, err)
	require.Equal(t, int64(42), parsed.AlertID)
	require.Equal(t, delivery.ActionMarkResolved, parsed.Action)
	require.Equal(t, int64(900), parsed.FromTelegramID)
	require.Equal(t, int64(-100), parsed.TransportChatID)
}

func TestParseCallbackRejectsMalformedData(t *testing.T) {
	cb := &tgbotapi.CallbackQuery{ID: "cbq-2", Data: "not-valid", From: &tgbotapi.User{ID: 1}}
	_, err := parseCallback(cb)
	require.Error(t, err)
}

func TestBuildInlineKeyboardEncodesActionAndAlertID(t *testing.T) {
	markup := buildInlineKeyboard([]delivery.KeyboardButton{
		{Label: "Mark resolved", Action: delivery.ActionMarkResolved, AlertID: 7},
	})
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	require.Equal(t, "mark_resolved:7", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestChannelValidateSecretUsesConstantTimeCompare(t *testing.T) {
	c := &Channel{secret: "shh-secret"}
	require.True(t, c.ValidateSecret("shh-secret"))
	require.False(t, c.ValidateSecret("wrong"))
	require.False(t, c.ValidateSecret(""))
}
