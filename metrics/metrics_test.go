package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthzReportsOkWhenStoreReachable(t *testing.T) {
	handler := HealthzHandler(fakePinger{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzReportsUnavailableWhenStoreErrors(t *testing.T) {
	handler := HealthzHandler(fakePinger{err: context.DeadlineExceeded})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerExposesRecordedCounters(t *testing.T) {
	r := New()
	r.RecordMessageIngested(true)
	r.RecordClassification("REQUEST", "keyword")
	r.SetBreakerState("open")
	r.RecordWebhookSignatureFailure()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "accountant_sla_messages_ingested_total")
	require.Contains(t, body, "accountant_sla_classifications_total")
	require.Contains(t, body, "accountant_sla_webhook_signature_failures_total 1")
	require.True(t, strings.Contains(body, "accountant_sla_classifier_breaker_state 2"))
}
