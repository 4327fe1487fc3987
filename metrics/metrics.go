// Package metrics exports Prometheus collectors for the SLA engine:
// message ingest volume, classifier outcomes and circuit-breaker state,
// queue job activity, and alert delivery, plus a liveness handler.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is the minimal storage capability /healthz needs to confirm the
// database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Registry struct {
	registry *prometheus.Registry

	messagesIngested *prometheus.CounterVec
	requestsCreated  *prometheus.CounterVec

	classifications  *prometheus.CounterVec
	classifierErrors *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec

	jobsEnqueued *prometheus.CounterVec
	jobsCancelled *prometheus.CounterVec

	alertsCreated    *prometheus.CounterVec
	deliveryOutcome  *prometheus.CounterVec
	deliveryLatency  *prometheus.HistogramVec
	escalationsCount *prometheus.CounterVec

	webhookSignatureFailures prometheus.Counter
}

func New() *Registry {
	registry := prometheus.NewRegistry()
	r := &Registry{registry: registry}

	r.messagesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "messages_ingested_total", Help: "Chat messages appended to the log.",
	}, []string{"is_accountant"})

	r.requestsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "requests_created_total", Help: "Client requests opened.",
	}, []string{"chat_id"})

	r.classifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "classifications_total", Help: "Classifier outcomes by category and source.",
	}, []string{"category", "model"})

	r.classifierErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "classifier_ai_errors_total", Help: "AI classifier call failures by error kind.",
	}, []string{"kind"})

	r.breakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "accountant_sla", Name: "classifier_breaker_state", Help: "Circuit breaker state: 0=closed, 1=half_open, 2=open.",
	}, []string{})

	r.jobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "queue_jobs_enqueued_total", Help: "Jobs enqueued by queue and job name.",
	}, []string{"queue", "job"})

	r.jobsCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "queue_jobs_cancelled_total", Help: "Jobs cancelled by queue.",
	}, []string{"queue"})

	r.alertsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "alerts_created_total", Help: "SlaAlert rows created by escalation level.",
	}, []string{"level"})

	r.deliveryOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "alert_delivery_total", Help: "Alert delivery attempts by outcome.",
	}, []string{"status"})

	r.deliveryLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accountant_sla", Name: "alert_delivery_latency_seconds", Help: "Time spent sending an alert notification.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	r.escalationsCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "escalations_total", Help: "Escalation jobs fired by level.",
	}, []string{"level"})

	r.webhookSignatureFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "accountant_sla", Name: "webhook_signature_failures_total", Help: "Inbound webhook requests rejected for a missing or mismatched secret.",
	})

	registry.MustRegister(
		r.messagesIngested, r.requestsCreated, r.classifications, r.classifierErrors, r.breakerState,
		r.jobsEnqueued, r.jobsCancelled, r.alertsCreated, r.deliveryOutcome, r.deliveryLatency, r.escalationsCount,
		r.webhookSignatureFailures,
	)
	return r
}

func (r *Registry) RecordWebhookSignatureFailure() {
	r.webhookSignatureFailures.Inc()
}

func (r *Registry) RecordMessageIngested(isAccountant bool) {
	r.messagesIngested.WithLabelValues(boolLabel(isAccountant)).Inc()
}

func (r *Registry) RecordRequestCreated(chatID int64) {
	r.requestsCreated.WithLabelValues(strconv.FormatInt(chatID, 10)).Inc()
}

func (r *Registry) RecordClassification(category, model string) {
	r.classifications.WithLabelValues(category, model).Inc()
}

func (r *Registry) RecordClassifierError(kind string) {
	r.classifierErrors.WithLabelValues(kind).Inc()
}

// SetBreakerState accepts the breaker's State() string ("closed",
// "half_open", "open") and maps it to the gauge's numeric encoding.
func (r *Registry) SetBreakerState(state string) {
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	r.breakerState.WithLabelValues().Set(v)
}

func (r *Registry) RecordJobEnqueued(queue, job string) {
	r.jobsEnqueued.WithLabelValues(queue, job).Inc()
}

func (r *Registry) RecordJobCancelled(queue string) {
	r.jobsCancelled.WithLabelValues(queue).Inc()
}

func (r *Registry) RecordAlertCreated(level int) {
	r.alertsCreated.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (r *Registry) RecordDelivery(status string, latency time.Duration) {
	r.deliveryOutcome.WithLabelValues(status).Inc()
	r.deliveryLatency.WithLabelValues(status).Observe(latency.Seconds())
}

func (r *Registry) RecordEscalation(level int) {
	r.escalationsCount.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// HealthzHandler reports 200 when the store responds to a ping within a
// short timeout, 503 otherwise.
func HealthzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

