package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/queue"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/db/sqlite"
	"github.com/avito-tech/accountant-sla/timer"
)

type fakeQueue struct {
	mu        sync.Mutex
	enqueued  map[string]queue.EnqueueOptions
	byQueue   map[string][]string
	cancelled map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{enqueued: map[string]queue.EnqueueOptions{}, byQueue: map[string][]string{}, cancelled: map[string]bool{}}
}

func (f *fakeQueue) Enqueue(ctx context.Context, queueName, jobName string, payload []byte, opts queue.EnqueueOptions) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := opts.JobID
	if id == "" {
		id = jobName + "-" + queueName + "-anon"
	}
	f.enqueued[id] = opts
	f.byQueue[queueName] = append(f.byQueue[queueName], jobName)
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

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

func seedBreachedRequest(t *testing.T, st *store.Store, managerIDs []int64) *store.ClientRequest {
	t.Helper()
	ctx := context.Background()
	chat, err := st.CreateChat(ctx, &store.Chat{
		TransportChatID: 1, Type: store.ChatTypeGroup, Is24x7: true, ManagerTelegramIDs: managerIDs,
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	receivedAt := time.Now().Add(-2 * time.Hour)
	req, err := st.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: "req-1", ChatID: chat.ID, MessageID: 1, ReceivedAt: receivedAt, Category: "REQUEST",
		Confidence: 0.9, ClassifierModel: "keyword", ThresholdMinutes: 60,
	})
	require.NoError(t, err)
	return req
}

func TestOnBreachCheckCreatesAlertsForEachRecipient(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedBreachedRequest(t, st, []int64{111, 222})

	svc := NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC")
	require.NoError(t, svc.OnBreachCheck(context.Background(), req.ID))

	alerts, err := st.ListSlaAlerts(context.Background(), &store.FindSlaAlert{RequestID: &req.ID})
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Contains(t, q.byQueue[queue.QueueAlerts], JobSendAlert)

	updated, err := st.GetClientRequest(context.Background(), &store.FindClientRequest{ID: &req.ID})
	require.NoError(t, err)
	require.True(t, updated.SlaBreached)
	require.Equal(t, store.RequestStatusEscalated, updated.Status)
}

func TestOnBreachCheckWithNoRecipientsCreatesNoAlert(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedBreachedRequest(t, st, nil)

	svc := NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC")
	require.NoError(t, svc.OnBreachCheck(context.Background(), req.ID))

	alerts, err := st.ListSlaAlerts(context.Background(), &store.FindSlaAlert{RequestID: &req.ID})
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestResolveAlertIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedBreachedRequest(t, st, []int64{111})
	svc := NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC")
	require.NoError(t, svc.OnBreachCheck(context.Background(), req.ID))

	alerts, err := st.ListSlaAlerts(context.Background(), &store.FindSlaAlert{RequestID: &req.ID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	alertID := alerts[0].ID

	userID := int64(999)
	require.NoError(t, svc.ResolveAlert(context.Background(), alertID, store.ResolvedActionMarkResolved, &userID))
	require.NoError(t, svc.ResolveAlert(context.Background(), alertID, store.ResolvedActionMarkResolved, &userID))

	resolved, err := st.GetSlaAlert(context.Background(), &store.FindSlaAlert{ID: &alertID})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAction)

	updated, err := st.GetClientRequest(context.Background(), &store.FindClientRequest{ID: &req.ID})
	require.NoError(t, err)
	require.Equal(t, store.RequestStatusAnswered, updated.Status)
}

func TestScheduleNextEscalationStopsAtMax(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedBreachedRequest(t, st, []int64{111})

	settings, err := st.GetGlobalSettings(context.Background())
	require.NoError(t, err)
	maxEscalations := settings.MaxEscalations

	svc := NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC")
	require.NoError(t, svc.ScheduleNextEscalation(context.Background(), req.ID, maxEscalations))
	require.NotContains(t, q.enqueued, queue.EscalationJobID(req.ID, maxEscalations+1))

	require.NoError(t, svc.ScheduleNextEscalation(context.Background(), req.ID, 0))
	require.Contains(t, q.enqueued, queue.EscalationJobID(req.ID, 1))
}
