package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/classify"
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
	f.enqueued[opts.JobID] = opts
	return &queue.Job{ID: opts.JobID, Queue: queueName}, nil
}

func (f *fakeQueue) Cancel(ctx context.Context, queueName, jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, existed := f.enqueued[jobID]
	delete(f.enqueued, jobID)
	f.cancelled[jobID] = true
	return existed
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

func newTestService(st *store.Store, q *fakeQueue) *Service {
	tm := timer.NewManager(st, q, "UTC", 0)
	alerts := alert.NewService(st, q, tm, "UTC")
	cascade := classify.NewService(st, nil, classify.DefaultCircuitBreaker(), classify.Config{
		AIConfidenceThreshold: 0.75, KeywordConfidenceThreshold: 0.5, CacheTTL: time.Hour,
	})
	return NewService(st, cascade, tm, alerts)
}

func seedMonitoredChat(t *testing.T, st *store.Store) *store.Chat {
	t.Helper()
	chat, err := st.CreateChat(context.Background(), &store.Chat{
		TransportChatID: 1, Type: store.ChatTypeGroup, Is24x7: true, MonitoringEnabled: true,
		SLAThresholdMinutes: 60, AssignedAccountantID: 900, AccountantUsernames: []string{"jane_acc"},
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)
	return chat
}

func TestHandleMessageCreatesRequestForClientQuestion(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	svc := newTestService(st, q)
	chat := seedMonitoredChat(t, st)

	outcome, err := svc.HandleMessage(context.Background(), MessageEvent{
		ChatID: chat.ID, MessageID: 1, SenderTelegramID: 5, SenderUsername: "client_bob",
		Text: "Когда будет готов акт?", MessageType: "text", TransportTimestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.CreatedRequest)
	require.Equal(t, store.RequestStatusPending, outcome.CreatedRequest.Status)
	require.Contains(t, q.enqueued, queue.SLATimerJobID(outcome.CreatedRequest.ID))
}

func TestHandleMessageSkipsNonRequestCategories(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	svc := newTestService(st, q)
	chat := seedMonitoredChat(t, st)

	outcome, err := svc.HandleMessage(context.Background(), MessageEvent{
		ChatID: chat.ID, MessageID: 2, SenderTelegramID: 5, SenderUsername: "client_bob",
		Text: "спасибо большое, все понятно", MessageType: "text", TransportTimestamp: time.Now(),
	})
	require.NoError(t, err)
	require.Nil(t, outcome.CreatedRequest)
}

func TestHandleMessageResolvesOldestOpenRequestOnAccountantReply(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	svc := newTestService(st, q)
	chat := seedMonitoredChat(t, st)

	_, err := svc.HandleMessage(context.Background(), MessageEvent{
		ChatID: chat.ID, MessageID: 1, SenderTelegramID: 5, SenderUsername: "client_bob",
		Text: "Когда будет готов акт?", MessageType: "text", TransportTimestamp: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	outcome, err := svc.HandleMessage(context.Background(), MessageEvent{
		ChatID: chat.ID, MessageID: 2, SenderTelegramID: 900, SenderUsername: "jane_acc",
		Text: "Акт готов, отправил вам на почту", MessageType: "text", TransportTimestamp: time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.ResolvedRequest)

	updated, err := st.GetClientRequest(context.Background(), &store.FindClientRequest{ID: &outcome.ResolvedRequest.ID})
	require.NoError(t, err)
	require.Equal(t, store.RequestStatusAnswered, updated.Status)
	require.True(t, q.cancelled[queue.SLATimerJobID(updated.ID)])
}

func TestHandleMessageStoresEditAsNewVersionWithoutReclassifying(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	svc := newTestService(st, q)
	chat := seedMonitoredChat(t, st)

	_, err := svc.HandleMessage(context.Background(), MessageEvent{
		ChatID: chat.ID, MessageID: 10, SenderTelegramID: 5, SenderUsername: "client_bob",
		Text: "Когда будет готов акт?", MessageType: "text", TransportTimestamp: time.Now(),
	})
	require.NoError(t, err)

	outcome, err := svc.HandleMessage(context.Background(), MessageEvent{
		ChatID: chat.ID, MessageID: 10, SenderTelegramID: 5, SenderUsername: "client_bob",
		Text: "Когда будет готов акт по всем договорам?", IsEdit: true, MessageType: "text", TransportTimestamp: time.Now(),
	})
	require.NoError(t, err)
	require.Nil(t, outcome.CreatedRequest)

	versions, err := st.ListChatMessageVersions(context.Background(), &store.FindChatMessage{ChatID: chat.ID, MessageID: 10})
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, 1, versions[1].EditVersion)
}
