package recovery

import (
	"context"
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
	mu       sync.Mutex
	enqueued map[string]queue.EnqueueOptions
	existing map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{enqueued: map[string]queue.EnqueueOptions{}, existing: map[string]bool{}}
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
	delete(f.enqueued, jobID)
	return true
}

func (f *fakeQueue) Get(ctx context.Context, queueName, jobID string) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existing[jobID] {
		return &queue.Job{ID: jobID, Queue: queueName}, nil
	}
	return nil, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

func seedPendingRequest(t *testing.T, st *store.Store, receivedAt time.Time, thresholdMinutes int) *store.ClientRequest {
	t.Helper()
	ctx := context.Background()
	chat, err := st.CreateChat(ctx, &store.Chat{
		TransportChatID: 1, Type: store.ChatTypeGroup, Is24x7: true, ManagerTelegramIDs: []int64{111},
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	req, err := st.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: "req-1", ChatID: chat.ID, MessageID: 1, ReceivedAt: receivedAt, Category: "REQUEST",
		Confidence: 0.9, ClassifierModel: "keyword", ThresholdMinutes: thresholdMinutes,
	})
	require.NoError(t, err)

	now := time.Now()
	_, err = st.UpdateClientRequest(ctx, &store.UpdateClientRequest{ID: req.ID, SlaTimerStartedAt: &now})
	require.NoError(t, err)

	updated, err := st.GetClientRequest(ctx, &store.FindClientRequest{ID: &req.ID})
	require.NoError(t, err)
	return updated
}

func TestRunLeavesAlreadyActiveTimersAlone(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedPendingRequest(t, st, time.Now().Add(-10*time.Minute), 60)
	q.existing[queue.SLATimerJobID(req.ID)] = true

	svc := NewService(st, q, alert.NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC"), "UTC")
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalPending)
	require.Equal(t, 1, report.AlreadyActive)
	require.Equal(t, 0, report.Rescheduled)
}

func TestRunReschedulesMissingTimerStillInWindow(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedPendingRequest(t, st, time.Now().Add(-10*time.Minute), 60)

	svc := NewService(st, q, alert.NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC"), "UTC")
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Rescheduled)
	require.Contains(t, q.enqueued, queue.SLATimerJobID(req.ID))
}

func TestRunEscalatesImmediatelyWhenAlreadyPastDue(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	req := seedPendingRequest(t, st, time.Now().Add(-2*time.Hour), 60)

	svc := NewService(st, q, alert.NewService(st, q, timer.NewManager(st, q, "UTC", 0), "UTC"), "UTC")
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Breached)
	require.Equal(t, 0, report.Rescheduled)

	updated, err := st.GetClientRequest(context.Background(), &store.FindClientRequest{ID: &req.ID})
	require.NoError(t, err)
	require.True(t, updated.SlaBreached)

	alerts, err := st.ListSlaAlerts(context.Background(), &store.FindSlaAlert{RequestID: &req.ID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}
