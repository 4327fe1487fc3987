// Package timer implements the SLA timer manager: scheduling breach-check
// and warning jobs on the delayed queue, and stopping/reporting on them
// against working-hours-aware elapsed time.
package timer

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/queue"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/workinghours"
)

const (
	JobBreachCheck = "sla:breach_check"
	JobWarning     = "sla:warning"
)

// JobPayload is the body enqueued for both breach-check and warning jobs.
type JobPayload struct {
	RequestID int64 `json:"request_id"`
}

// QueueClient is the subset of *queue.Client the timer manager depends
// on, narrowed to an interface so tests can supply a fake without a Redis
// instance.
type QueueClient interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload []byte, opts queue.EnqueueOptions) (*queue.Job, error)
	Cancel(ctx context.Context, queueName, jobID string) bool
}

type Manager struct {
	store           *store.Store
	queue           QueueClient
	defaultTimezone string
	warningPercent  int // 0 disables warning jobs
}

func NewManager(st *store.Store, q QueueClient, defaultTimezone string, warningPercent int) *Manager {
	return &Manager{store: st, queue: q, defaultTimezone: defaultTimezone, warningPercent: warningPercent}
}

// StartTimer schedules the breach-check job (and, if configured, the
// warning job) for a pending request. It is idempotent: calling it again
// for the same request relies on the queue's stable-jobId replace-or-keep
// behavior.
func (m *Manager) StartTimer(ctx context.Context, requestID, chatID int64, thresholdMinutes int, receivedAt time.Time) error {
	req, err := m.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return apperror.NotFound("client request %d not found", requestID)
	}
	if req.Status != store.RequestStatusPending {
		return apperror.Conflict("client request %d is not pending (status=%s)", requestID, req.Status)
	}

	chat, err := m.store.GetChat(ctx, &store.FindChat{ID: &chatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return apperror.NotFound("chat %d not found", chatID)
	}

	schedule, err := ResolveSchedule(ctx, m.store, chatID, chat.Is24x7, m.defaultTimezone)
	if err != nil {
		return errors.Wrap(err, "failed to resolve working-hours schedule")
	}

	now := time.Now()
	payload, err := json.Marshal(JobPayload{RequestID: requestID})
	if err != nil {
		return errors.Wrap(err, "failed to marshal job payload")
	}

	delay, err := workinghours.CalculateDelayUntilBreach(receivedAt, float64(thresholdMinutes), schedule, now)
	if err != nil {
		return errors.Wrap(err, "failed to compute breach delay")
	}
	if _, err := m.queue.Enqueue(ctx, queue.QueueSLATimers, JobBreachCheck, payload, queue.EnqueueOptions{
		DelayMs: delay.Milliseconds(), JobID: queue.SLATimerJobID(requestID), Attempts: 1,
	}); err != nil {
		return errors.Wrap(err, "failed to enqueue breach-check job")
	}

	if m.warningPercent > 0 && m.warningPercent < 100 {
		warningThreshold := math.Floor(float64(thresholdMinutes) * float64(m.warningPercent) / 100)
		warningDelay, err := workinghours.CalculateDelayUntilBreach(receivedAt, warningThreshold, schedule, now)
		if err != nil {
			return errors.Wrap(err, "failed to compute warning delay")
		}
		if _, err := m.queue.Enqueue(ctx, queue.QueueSLATimers, JobWarning, payload, queue.EnqueueOptions{
			DelayMs: warningDelay.Milliseconds(), JobID: queue.WarningJobID(requestID), Attempts: 1,
		}); err != nil {
			return errors.Wrap(err, "failed to enqueue warning job")
		}
	}

	if _, err := m.store.UpdateClientRequest(ctx, &store.UpdateClientRequest{ID: requestID, SlaTimerStartedAt: &now}); err != nil {
		return errors.Wrap(err, "failed to record timer start")
	}
	return nil
}

type StopParams struct {
	RequestID         int64
	RespondedBy       int64
	ResponseMessageID int64
	ResponseAt        time.Time
}

type StopResult struct {
	AlreadyStopped      bool
	ElapsedWorkingMinutes float64
	Breached            bool
}

// StopTimer cancels both scheduled jobs (best-effort) and records the
// response. Calling it on an already-answered request reports
// AlreadyStopped instead of erroring.
func (m *Manager) StopTimer(ctx context.Context, p StopParams) (StopResult, error) {
	req, err := m.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &p.RequestID})
	if err != nil {
		return StopResult{}, errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return StopResult{}, apperror.NotFound("client request %d not found", p.RequestID)
	}
	if req.Status == store.RequestStatusAnswered {
		return StopResult{AlreadyStopped: true}, nil
	}

	m.queue.Cancel(ctx, queue.QueueSLATimers, queue.SLATimerJobID(p.RequestID))
	m.queue.Cancel(ctx, queue.QueueSLATimers, queue.WarningJobID(p.RequestID))

	chat, err := m.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return StopResult{}, errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return StopResult{}, apperror.NotFound("chat %d not found", req.ChatID)
	}
	schedule, err := ResolveSchedule(ctx, m.store, req.ChatID, chat.Is24x7, m.defaultTimezone)
	if err != nil {
		return StopResult{}, errors.Wrap(err, "failed to resolve working-hours schedule")
	}

	elapsed, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, p.ResponseAt, schedule)
	if err != nil {
		return StopResult{}, errors.Wrap(err, "failed to compute elapsed working minutes")
	}
	breached := req.SlaBreached || elapsed >= float64(req.ThresholdMinutes)

	status := store.RequestStatusAnswered
	if _, err := m.store.UpdateClientRequest(ctx, &store.UpdateClientRequest{
		ID: p.RequestID, Status: &status, ResponseAt: &p.ResponseAt, RespondedBy: &p.RespondedBy,
		ResponseMessageID: &p.ResponseMessageID, ResponseTimeMinutes: &elapsed, SlaWorkingMinutes: &elapsed,
		SlaBreached: &breached,
	}); err != nil {
		return StopResult{}, errors.Wrap(err, "failed to record response")
	}

	return StopResult{ElapsedWorkingMinutes: elapsed, Breached: breached}, nil
}

// PauseTimer records a "waiting on client" pause. Per design, pausing
// cancels the breach-check job; ResumeTimer recomputes the remaining
// threshold from the paused elapsed time and reschedules it.
func (m *Manager) PauseTimer(ctx context.Context, requestID int64) error {
	req, err := m.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return apperror.NotFound("client request %d not found", requestID)
	}
	if req.SlaTimerPausedAt != nil {
		return nil
	}

	m.queue.Cancel(ctx, queue.QueueSLATimers, queue.SLATimerJobID(requestID))
	m.queue.Cancel(ctx, queue.QueueSLATimers, queue.WarningJobID(requestID))

	now := time.Now()
	status := store.RequestStatusWaitingClient
	_, err = m.store.UpdateClientRequest(ctx, &store.UpdateClientRequest{ID: requestID, SlaTimerPausedAt: &now, Status: &status})
	return err
}

func (m *Manager) ResumeTimer(ctx context.Context, requestID int64) error {
	req, err := m.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return apperror.NotFound("client request %d not found", requestID)
	}
	if req.SlaTimerPausedAt == nil {
		return nil
	}

	chat, err := m.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	schedule, err := ResolveSchedule(ctx, m.store, req.ChatID, chat.Is24x7, m.defaultTimezone)
	if err != nil {
		return errors.Wrap(err, "failed to resolve working-hours schedule")
	}

	elapsedSoFar, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, *req.SlaTimerPausedAt, schedule)
	if err != nil {
		return errors.Wrap(err, "failed to compute elapsed working minutes before pause")
	}
	remaining := float64(req.ThresholdMinutes) - elapsedSoFar
	if remaining < 0 {
		remaining = 0
	}

	now := time.Now()
	delay, err := workinghours.CalculateDelayUntilBreach(now, remaining, schedule, now)
	if err != nil {
		return errors.Wrap(err, "failed to compute resumed breach delay")
	}
	payload, err := json.Marshal(JobPayload{RequestID: requestID})
	if err != nil {
		return errors.Wrap(err, "failed to marshal job payload")
	}
	if _, err := m.queue.Enqueue(ctx, queue.QueueSLATimers, JobBreachCheck, payload, queue.EnqueueOptions{
		DelayMs: delay.Milliseconds(), JobID: queue.SLATimerJobID(requestID), Attempts: 1,
	}); err != nil {
		return errors.Wrap(err, "failed to re-enqueue breach-check job")
	}

	status := store.RequestStatusPending
	_, err = m.store.UpdateClientRequest(ctx, &store.UpdateClientRequest{ID: requestID, ClearSlaTimerPaused: true, Status: &status})
	return err
}

type Status struct {
	ElapsedWorkingMinutes float64
	RemainingMinutes      float64
	ThresholdMinutes      int
	Breached              bool
	TimerStartedAt        *time.Time
}

func (m *Manager) GetSlaStatus(ctx context.Context, requestID int64) (*Status, error) {
	req, err := m.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return nil, apperror.NotFound("client request %d not found", requestID)
	}

	chat, err := m.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return nil, apperror.NotFound("chat %d not found", req.ChatID)
	}
	schedule, err := ResolveSchedule(ctx, m.store, req.ChatID, chat.Is24x7, m.defaultTimezone)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve working-hours schedule")
	}

	reference := time.Now()
	if req.ResponseAt != nil {
		reference = *req.ResponseAt
	}
	elapsed, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, reference, schedule)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute elapsed working minutes")
	}
	remaining := float64(req.ThresholdMinutes) - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return &Status{
		ElapsedWorkingMinutes: elapsed,
		RemainingMinutes:      remaining,
		ThresholdMinutes:      req.ThresholdMinutes,
		Breached:              req.SlaBreached || elapsed >= float64(req.ThresholdMinutes),
		TimerStartedAt:        req.SlaTimerStartedAt,
	}, nil
}
