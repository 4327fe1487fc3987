package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	return store.New(driver, &profile.Profile{})
}

func TestSweepClassificationCachePurgesOnlyExpired(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertClassificationCache(ctx, &store.ClassificationCacheEntry{
		Hash: "expired", Category: "REQUEST", Confidence: 0.9, Model: "keyword",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, st.UpsertClassificationCache(ctx, &store.ClassificationCacheEntry{
		Hash: "fresh", Category: "REQUEST", Confidence: 0.9, Model: "keyword",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	sw := NewSweeper(st)
	report, err := sw.SweepClassificationCache(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), report.ClassificationCachePurged)

	remaining, err := st.GetClassificationCache(ctx, "fresh")
	require.NoError(t, err)
	require.NotNil(t, remaining)

	gone, err := st.GetClassificationCache(ctx, "expired")
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestSweepRetentionHorizonLeavesOpenRequestsAlone(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.UpdateGlobalSettings(ctx, &store.UpdateGlobalSettings{DataRetentionDays: intPtr(30)})
	require.NoError(t, err)

	chat, err := st.CreateChat(ctx, &store.Chat{
		TransportChatID: 1, Type: store.ChatTypeGroup, Is24x7: true, ManagerTelegramIDs: []int64{111},
		CreatedTs: time.Now().Unix(), UpdatedTs: time.Now().Unix(),
	})
	require.NoError(t, err)

	oldClosed, err := st.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: "old-closed", ChatID: chat.ID, MessageID: 1, ReceivedAt: time.Now().AddDate(0, 0, -60),
		Category: "REQUEST", Confidence: 0.9, ClassifierModel: "keyword", ThresholdMinutes: 60,
	})
	require.NoError(t, err)
	_, err = st.UpdateClientRequest(ctx, &store.UpdateClientRequest{ID: oldClosed.ID, Status: statusPtr(store.RequestStatusClosed)})
	require.NoError(t, err)

	oldPending, err := st.CreateClientRequest(ctx, &store.CreateClientRequest{
		UID: "old-pending", ChatID: chat.ID, MessageID: 2, ReceivedAt: time.Now().AddDate(0, 0, -60),
		Category: "REQUEST", Confidence: 0.9, ClassifierModel: "keyword", ThresholdMinutes: 60,
	})
	require.NoError(t, err)

	sw := NewSweeper(st)
	report, err := sw.SweepRetentionHorizon(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), report.ClientRequestsPurged)

	gone, err := st.ListClientRequests(ctx, &store.FindClientRequest{ID: &oldClosed.ID})
	require.NoError(t, err)
	require.Empty(t, gone)

	stillThere, err := st.ListClientRequests(ctx, &store.FindClientRequest{ID: &oldPending.ID})
	require.NoError(t, err)
	require.Len(t, stillThere, 1)
}

func TestSweepRetentionHorizonDisabledWhenZero(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.UpdateGlobalSettings(ctx, &store.UpdateGlobalSettings{DataRetentionDays: intPtr(0)})
	require.NoError(t, err)

	sw := NewSweeper(st)
	report, err := sw.SweepRetentionHorizon(ctx)
	require.NoError(t, err)
	require.Zero(t, report.ClientRequestsPurged)
}

func intPtr(v int) *int { return &v }

func statusPtr(s store.RequestStatus) *store.RequestStatus { return &s }
