package timer

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

func seedChatAndRequest(t *testing.T, st *store.Store, thresholdMinutes int, receivedAt time.Time) (*store.Chat, *store.ClientRequest) {
	t.Helper()
	ctx := context.Background()
	chat, err := st.CreateChat(ctx, &store.Chat{TransportChatID: 1, Type: store.ChatTypeGroup, CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix()})
	require.NoError(t, err)

	_, err = st.UpsertWorkingSchedule(ctx, []*store.UpsertWorkingScheduleRow{
		{ChatID: &chat.ID, Weekday: 1, StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
		{ChatID: &chat.ID, Weekday: 2, StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
		{ChatID: &chat.ID, Weekday: 3, StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
		{ChatID: &chat.ID, Weekday: 4, StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
		{ChatID: &chat.ID, Weekday: 5, StartTime: "09:00", EndTime: "18:00", Timezone: "UTC"},
	})
	require.NoError(t, err)

	req, err := st.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: "req-1", ChatID: chat.ID, MessageID: 100, ReceivedAt: receivedAt, Category: "REQUEST",
		Confidence: 0.9, ClassifierModel: "keyword", ThresholdMinutes: thresholdMinutes,
	})
	require.NoError(t, err)
	return chat, req
}

func TestStartTimerEnqueuesBreachAndWarningJobs(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	receivedAt := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC) // Monday
	_, req := seedChatAndRequest(t, st, 60, receivedAt)

	mgr := NewManager(st, q, "UTC", 80)
	require.NoError(t, mgr.StartTimer(context.Background(), req.ID, req.ChatID, req.ThresholdMinutes, req.ReceivedAt))

	require.Contains(t, q.enqueued, queue.SLATimerJobID(req.ID))
	require.Contains(t, q.enqueued, queue.WarningJobID(req.ID))
}

func TestStopTimerRecordsResponseAndCancelsJobs(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	receivedAt := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	_, req := seedChatAndRequest(t, st, 60, receivedAt)

	mgr := NewManager(st, q, "UTC", 0)
	require.NoError(t, mgr.StartTimer(context.Background(), req.ID, req.ChatID, req.ThresholdMinutes, req.ReceivedAt))

	responseAt := receivedAt.Add(45 * time.Minute)
	result, err := mgr.StopTimer(context.Background(), StopParams{RequestID: req.ID, RespondedBy: 55, ResponseMessageID: 101, ResponseAt: responseAt})
	require.NoError(t, err)
	require.False(t, result.AlreadyStopped)
	require.InDelta(t, 45.0, result.ElapsedWorkingMinutes, 0.01)
	require.False(t, result.Breached)
	require.True(t, q.cancelled[queue.SLATimerJobID(req.ID)])
}

func TestStopTimerIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	receivedAt := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	_, req := seedChatAndRequest(t, st, 60, receivedAt)

	mgr := NewManager(st, q, "UTC", 0)
	require.NoError(t, mgr.StartTimer(context.Background(), req.ID, req.ChatID, req.ThresholdMinutes, req.ReceivedAt))

	responseAt := receivedAt.Add(10 * time.Minute)
	_, err := mgr.StopTimer(context.Background(), StopParams{RequestID: req.ID, RespondedBy: 55, ResponseMessageID: 101, ResponseAt: responseAt})
	require.NoError(t, err)

	result, err := mgr.StopTimer(context.Background(), StopParams{RequestID: req.ID, RespondedBy: 55, ResponseMessageID: 101, ResponseAt: responseAt})
	require.NoError(t, err)
	require.True(t, result.AlreadyStopped)
}

func TestGetSlaStatusReportsRemainingMinutes(t *testing.T) {
	st := newTestStore(t)
	q := newFakeQueue()
	receivedAt := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)
	_, req := seedChatAndRequest(t, st, 60, receivedAt)

	mgr := NewManager(st, q, "UTC", 0)
	require.NoError(t, mgr.StartTimer(context.Background(), req.ID, req.ChatID, req.ThresholdMinutes, req.ReceivedAt))

	status, err := mgr.GetSlaStatus(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, 60, status.ThresholdMinutes)
	// receivedAt is long past, so all 60 working minutes have elapsed.
	require.True(t, status.Breached)
	require.Zero(t, status.RemainingMinutes)
}
