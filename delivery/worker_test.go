package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/queue"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/db/sqlite"
	"github.com/avito-tech/accountant-sla/timer"
)

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  map[string]queue.EnqueueOptions
	cancelled map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{enqueued: map[string]queue.EnqueueOptions{}, cancelled: map[string]bool{}}
}

func (f *fakeQueue) Enqueue(ctx context.Context, queueName, jobName string, payload []byte, opts queue.EnqueueOptions) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := opts.JobID
	if id == "" {
		id = jobName + "-anon"
	}
	f.enqueued[id] = opts
	return &queue.Job{ID: id, Queue: queueName}, nil
}

func (f *fakeQueue) Cancel(ctx context.Context, queueName, jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, existed := f.enqueued[jobID]
	delete(f.enqueued, jobID)
	f.cancelled[jobID] = true
	return existed
}

type fakeSender struct {
	mu       sync.Mutex
	sent     int
	fail     bool
	lastText string
}

func (f *fakeSender) SendText(ctx context.Context, recipientTelegramID int64, text string, keyboard []KeyboardButton) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errSendFailed
	}
	f.sent++
	f.lastText = text
	return 555, nil
}

var errSendFailed = &sendError{}

type sendError struct{}

func (e *sendError) Error() string { return "simulated send failure" }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

func seedAlert(t *testing.T, st *store.Store) (*store.ClientRequest, *store.SlaAlert) {
	t.Helper()
	ctx := context.Background()
	chat, err := st.CreateChat(ctx, &store.Chat{
		TransportChatID: 42, Type: store.ChatTypeGroup, Title: "Acme Billing", Is24x7: true,
		ManagerTelegramIDs: []int64{111}, AssignedAccountantID: 900, AccountantUsernames: []string{"jane_acc"},
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	receivedAt := time.Now().Add(-2 * time.Hour)
	req, err := st.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: "req-1", ChatID: chat.ID, MessageID: 7, ReceivedAt: receivedAt, Category: "REQUEST",
		Confidence: 0.9, ClassifierModel: "keyword", ThresholdMinutes: 60,
	})
	require.NoError(t, err)

	_, err = st.CreateChatMessage(ctx, &store.CreateChatMessage{
		ChatID: chat.ID, MessageID: 7, SenderTelegramID: 321, SenderUsername: "client_alice",
		Text: "When will my invoice be ready?", MessageType: "text", TransportTimestamp: receivedAt,
	})
	require.NoError(t, err)

	a, err := st.CreateSlaAlert(ctx, &store.CreateSlaAlert{
		UID: "alert-1", RequestID: req.ID, AlertType: store.AlertTypeBreach,
		EscalationLevel: 0, MinutesElapsed: 120, ManagerTelegramID: 111,
	})
	require.NoError(t, err)
	return req, a
}

func newTestAlertService(st *store.Store, q *fakeQueue) *alert.Service {
	return alert.NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC")
}

func TestHandleSendAlertMarksDelivered(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	_, a := seedAlert(t, st)
	sender := &fakeSender{}
	w := NewWorker(st, newTestAlertService(st, q), sender)

	payload, err := marshalDeliveryPayload(a.ID)
	require.NoError(t, err)
	require.NoError(t, w.HandleSendAlert(context.Background(), payload))

	require.Equal(t, 1, sender.sent)
	require.Contains(t, sender.lastText, "Acme Billing")
	require.Contains(t, sender.lastText, "client_alice")

	updated, err := st.GetSlaAlert(context.Background(), &store.FindSlaAlert{ID: &a.ID})
	require.NoError(t, err)
	require.Equal(t, store.DeliveryStatusDelivered, updated.DeliveryStatus)
	require.NotNil(t, updated.TelegramMessageID)
}

func TestHandleSendAlertMarksFailedOnSendError(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	_, a := seedAlert(t, st)
	sender := &fakeSender{fail: true}
	w := NewWorker(st, newTestAlertService(st, q), sender)

	payload, err := marshalDeliveryPayload(a.ID)
	require.NoError(t, err)
	require.Error(t, w.HandleSendAlert(context.Background(), payload))

	updated, err := st.GetSlaAlert(context.Background(), &store.FindSlaAlert{ID: &a.ID})
	require.NoError(t, err)
	require.Equal(t, store.DeliveryStatusFailed, updated.DeliveryStatus)
}

func TestHandleSendAlertIsNoopWhenAlreadyResolved(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	_, a := seedAlert(t, st)
	sender := &fakeSender{}
	svc := newTestAlertService(st, q)
	require.NoError(t, svc.ResolveAlert(context.Background(), a.ID, store.ResolvedActionMarkResolved, nil))
	w := NewWorker(st, svc, sender)

	payload, err := marshalDeliveryPayload(a.ID)
	require.NoError(t, err)
	require.NoError(t, w.HandleSendAlert(context.Background(), payload))
	require.Equal(t, 0, sender.sent)
}

func marshalDeliveryPayload(alertID int64) ([]byte, error) {
	return json.Marshal(alert.DeliveryPayload{AlertID: alertID})
}
