package rpcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/chatapp"
	"github.com/avito-tech/accountant-sla/classify"
	"github.com/avito-tech/accountant-sla/delivery"
	"github.com/avito-tech/accountant-sla/ingest"
	"github.com/avito-tech/accountant-sla/internal/profile"
	"github.com/avito-tech/accountant-sla/metrics"
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
	f.cancelled[jobID] = true
	delete(f.enqueued, jobID)
	return existed
}

// fakeChannel is a no-op chatapp.Channel so the webhook path can be
// exercised without a real Telegram bot.
type fakeChannel struct {
	secret string
}

func (f *fakeChannel) Name() string { return "fake" }
func (f *fakeChannel) ValidateSecret(v string) bool { return v == f.secret }
func (f *fakeChannel) ParseUpdate(ctx context.Context, body []byte) (*chatapp.Update, error) {
	return nil, nil
}
func (f *fakeChannel) SendText(ctx context.Context, recipientTelegramID int64, text string, keyboard []delivery.KeyboardButton) (int64, error) {
	return 1, nil
}
func (f *fakeChannel) SendGroupMention(ctx context.Context, transportChatID int64, username, text string) error {
	return nil
}
func (f *fakeChannel) AnswerCallback(ctx context.Context, callbackQueryID, text string) error {
	return nil
}
func (f *fakeChannel) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	driver, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	t.Cleanup(func() { _ = driver.Close() })
	st := store.New(driver, &profile.Profile{})

	q := newFakeQueue()
	tm := timer.NewManager(st, q, "UTC", 0)
	alerts := alert.NewService(st, q, tm, "UTC")
	cascade := classify.NewService(st, nil, classify.DefaultCircuitBreaker(), classify.Config{
		AIConfidenceThreshold: 0.75, KeywordConfidenceThreshold: 0.5, CacheTTL: time.Hour,
	})
	ing := ingest.NewService(st, cascade, tm, alerts)
	channel := &fakeChannel{secret: "topsecret"}
	callback := delivery.NewCallbackHandler(st, alerts, channel)

	srv := &Server{
		Store: st, Timer: tm, Alerts: alerts, Classify: cascade, Ingest: ing,
		Callback: callback, Channel: channel, Metrics: metrics.New(),
	}
	return srv, st
}

func doJSON(t *testing.T, e http.Handler, method, path string, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(roleHeader, role)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterChatAndGetChatByID(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/chats", "manager", registerChatBody{
		TransportChatID: 555, Type: "group", Title: "Acc chat", SLAThresholdMinutes: 60, MonitoringEnabled: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created chatView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, id64(555), created.TransportChatID)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/chats/"+strconv.FormatInt(int64(created.ID), 10), "authed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterChatRejectsBelowManagerRole(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()
	rec := doJSON(t, e, http.MethodPost, "/api/v1/chats", "authed", registerChatBody{TransportChatID: 1, Type: "group"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateRequestStartsTimerAndExposesActiveTimer(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/chats", "manager", registerChatBody{
		TransportChatID: 1, Type: "group", SLAThresholdMinutes: 60, MonitoringEnabled: true, Is24x7: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var chat chatView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = doJSON(t, e, http.MethodPost, "/api/v1/sla/requests", "manager", createRequestBody{
		ChatID: chat.ID, MessageID: 10, Text: "нужна справка", Category: "REQUEST", ThresholdMinutes: 60,
		ReceivedAt: time.Now(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/sla/timers/active", "authed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []activeTimerView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
}

func TestClassifyMessageReturnsKeywordResult(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()
	rec := doJSON(t, e, http.MethodPost, "/api/v1/sla/classify", "authed", classifyMessageBody{Text: "Когда будет готов счет?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp classifyMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "REQUEST", resp.Category)
}

func TestAddHolidayRejectsYearOutsideRange(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()
	rec := doJSON(t, e, http.MethodPost, "/api/v1/settings/holidays", "admin", holidayBody{Date: "2031-01-01", Name: "out of range"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/api/v1/settings/holidays", "admin", holidayBody{Date: "2026-01-01", Name: "New Year"})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestSeedRussianHolidaysPopulatesGlobalCalendar(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()
	rec := doJSON(t, e, http.MethodPost, "/api/v1/settings/holidays/seed-russian", "admin", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/settings/holidays", "authed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []*store.Holiday
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, len(russianPublicHolidays))
}

func TestWebhookRejectsInvalidSecret(t *testing.T) {
	srv, _ := newTestServer(t)
	e := srv.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewBufferString("{}"))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVALID_WEBHOOK_SIGNATURE", body.Code)
}
