package delivery

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// AlertView carries everything the alert template needs to render.
type AlertView struct {
	ChatTitle        string
	ElapsedMinutes   float64
	ThresholdMinutes int
	MessagePreview   string
	ClientUsername   string
	EscalationLevel  int
	ChatDeepLink     string
}

// RenderAlertBody renders the alert notification as Telegram-flavored
// markdown, then through goldmark to confirm it is well-formed before
// sending (Telegram accepts a constrained Markdown/HTML subset; goldmark
// here acts as a structural sanity check on the body, not an HTML
// renderer shipped to the user).
func RenderAlertBody(v AlertView) (string, error) {
	preview := v.MessagePreview
	if preview == "" {
		preview = "(no preview available)"
	}

	levelLabel := "SLA breach"
	if v.EscalationLevel > 0 {
		levelLabel = fmt.Sprintf("SLA breach — escalation level %d", v.EscalationLevel)
	}

	md := fmt.Sprintf(
		"**%s**\n\nChat: *%s*\nClient: %s\nElapsed: %.0f min / threshold %d min\n\n> %s\n\n[Open chat](%s)",
		levelLabel, v.ChatTitle, v.ClientUsername, v.ElapsedMinutes, v.ThresholdMinutes, truncateForDisplay(preview), v.ChatDeepLink,
	)

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render alert body: %w", err)
	}
	return md, nil
}

func truncateForDisplay(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// KeyboardAction identifies an inline keyboard callback.
type KeyboardAction string

const (
	ActionNotifyAccountant KeyboardAction = "notify_accountant"
	ActionMarkResolved     KeyboardAction = "mark_resolved"
)

type KeyboardButton struct {
	Label    string
	Action   KeyboardAction
	AlertID  int64
}

// AlertKeyboard builds the action row: notify the accountant and mark
// resolved. chatDeepLink is not used; the row has no deep-link button.
func AlertKeyboard(alertID int64, chatDeepLink string) []KeyboardButton {
	return []KeyboardButton{
		{Label: "Notify accountant", Action: ActionNotifyAccountant, AlertID: alertID},
		{Label: "Mark resolved", Action: ActionMarkResolved, AlertID: alertID},
	}
}
