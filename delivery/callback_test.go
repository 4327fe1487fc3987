package delivery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/store"
)

type fakeNotifier struct {
	mu           sync.Mutex
	dmFail       bool
	dmRecipients []int64
	groupTexts   []string
}

func (f *fakeNotifier) SendText(ctx context.Context, recipientTelegramID int64, text string, keyboard []KeyboardButton) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmFail {
		return 0, errSendFailed
	}
	f.dmRecipients = append(f.dmRecipients, recipientTelegramID)
	return 1, nil
}

func (f *fakeNotifier) SendGroupMention(ctx context.Context, transportChatID int64, username, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupTexts = append(f.groupTexts, text)
	return nil
}

func TestCallbackHandlerMarkResolvedResolvesAlert(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req, a := seedAlert(t, st)
	_ = req
	notifier := &fakeNotifier{}
	h := NewCallbackHandler(st, newTestAlertService(st, q), notifier)

	require.NoError(t, h.Handle(context.Background(), CallbackAction{AlertID: a.ID, Action: ActionMarkResolved, FromTelegramID: 900}))

	resolved, err := st.GetSlaAlert(context.Background(), &store.FindSlaAlert{ID: &a.ID})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAction)
}

func TestCallbackHandlerNotifyAccountantPrefersDM(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	_, a := seedAlert(t, st)
	notifier := &fakeNotifier{}
	h := NewCallbackHandler(st, newTestAlertService(st, q), notifier)

	require.NoError(t, h.Handle(context.Background(), CallbackAction{AlertID: a.ID, Action: ActionNotifyAccountant}))
	require.Empty(t, notifier.groupTexts)
	require.NotEmpty(t, notifier.dmRecipients)
}

func TestCallbackHandlerNotifyAccountantFallsBackToGroup(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	_, a := seedAlert(t, st)
	notifier := &fakeNotifier{dmFail: true}
	h := NewCallbackHandler(st, newTestAlertService(st, q), notifier)

	require.NoError(t, h.Handle(context.Background(), CallbackAction{AlertID: a.ID, Action: ActionNotifyAccountant}))
	require.NotEmpty(t, notifier.groupTexts)
}
