// Package alert implements the alert service and escalation state
// machine: turning a breached SLA timer into one SlaAlert per recipient,
// chaining escalation jobs, and resolving the chain when a human or the
// accountant acts.
package alert

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/avito-tech/accountant-sla/internal/apperror"
	"github.com/avito-tech/accountant-sla/queue"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/timer"
	"github.com/avito-tech/accountant-sla/workinghours"
)

const (
	JobSendAlert  = "alert:send"
	JobEscalation = "alert:escalate"
)

// DeliveryPayload is the body enqueued onto the alerts queue for both
// first-send and escalation jobs; the delivery worker loads the alert and
// request fresh rather than carrying their fields through the job body.
type DeliveryPayload struct {
	AlertID int64 `json:"alert_id"`
}

// EscalationPayload is the body enqueued onto sla-timers for a pending
// escalation step.
type EscalationPayload struct {
	RequestID int64 `json:"request_id"`
	Level     int   `json:"level"`
}

type Service struct {
	store           *store.Store
	queue           timer.QueueClient
	timer           *timer.Manager
	defaultTimezone string
}

func NewService(st *store.Store, q timer.QueueClient, tm *timer.Manager, defaultTimezone string) *Service {
	return &Service{store: st, queue: q, timer: tm, defaultTimezone: defaultTimezone}
}

// OnBreachCheck is the sla-timers handler for a fired breach-check job.
func (s *Service) OnBreachCheck(ctx context.Context, requestID int64) error {
	req, err := s.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return apperror.NotFound("client request %d not found", requestID)
	}
	if req.Status == store.RequestStatusAnswered || req.Status == store.RequestStatusClosed {
		return nil
	}

	chat, err := s.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return apperror.NotFound("chat %d not found", req.ChatID)
	}
	schedule, err := timer.ResolveSchedule(ctx, s.store, req.ChatID, chat.Is24x7, s.defaultTimezone)
	if err != nil {
		return errors.Wrap(err, "failed to resolve working-hours schedule")
	}

	now := time.Now()
	elapsed, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, now, schedule)
	if err != nil {
		return errors.Wrap(err, "failed to compute elapsed working minutes")
	}

	if elapsed < float64(req.ThresholdMinutes) {
		// The schedule moved under us (e.g. a holiday was added) so the
		// fence slid out; reschedule rather than firing prematurely.
		delay, err := workinghours.CalculateDelayUntilBreach(req.ReceivedAt, float64(req.ThresholdMinutes), schedule, now)
		if err != nil {
			return errors.Wrap(err, "failed to recompute breach delay")
		}
		payload, _ := json.Marshal(timer.JobPayload{RequestID: requestID})
		_, err = s.queue.Enqueue(ctx, queue.QueueSLATimers, timer.JobBreachCheck, payload, queue.EnqueueOptions{
			DelayMs: delay.Milliseconds(), JobID: queue.SLATimerJobID(requestID), Attempts: 1,
		})
		return errors.Wrap(err, "failed to reschedule breach-check job")
	}

	breached := true
	status := store.RequestStatusEscalated
	if _, err := s.store.UpdateClientRequest(ctx, &store.UpdateClientRequest{ID: requestID, SlaBreached: &breached, Status: &status}); err != nil {
		return errors.Wrap(err, "failed to mark request breached")
	}

	recipients := chat.ManagerTelegramIDs
	if len(recipients) == 0 {
		settings, err := s.store.GetGlobalSettings(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load global settings")
		}
		recipients = settings.GlobalManagerTelegramIDs
	}
	if len(recipients) == 0 {
		slog.Error("sla breach has no resolvable recipients, no alert created", "request_id", requestID, "chat_id", req.ChatID)
		return nil
	}

	for _, managerID := range recipients {
		created, err := s.store.CreateSlaAlert(ctx, &store.CreateSlaAlert{
			UID: shortuuid.New(), RequestID: requestID, AlertType: store.AlertTypeBreach,
			EscalationLevel: 0, MinutesElapsed: elapsed, ManagerTelegramID: managerID,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create sla alert")
		}
		payload, _ := json.Marshal(DeliveryPayload{AlertID: created.ID})
		if _, err := s.queue.Enqueue(ctx, queue.QueueAlerts, JobSendAlert, payload, queue.EnqueueOptions{}); err != nil {
			return errors.Wrap(err, "failed to enqueue alert delivery job")
		}
	}
	return nil
}

// OnWarning is the sla-timers handler for a fired warning job: it creates
// a level-0 warning alert per manager recipient without marking the
// request breached, giving a human a chance to act before the breach
// check fires.
func (s *Service) OnWarning(ctx context.Context, requestID int64) error {
	req, err := s.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil {
		return apperror.NotFound("client request %d not found", requestID)
	}
	if req.Status == store.RequestStatusAnswered || req.Status == store.RequestStatusClosed {
		return nil
	}

	chat, err := s.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return apperror.NotFound("chat %d not found", req.ChatID)
	}
	schedule, err := timer.ResolveSchedule(ctx, s.store, req.ChatID, chat.Is24x7, s.defaultTimezone)
	if err != nil {
		return errors.Wrap(err, "failed to resolve working-hours schedule")
	}
	elapsed, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, time.Now(), schedule)
	if err != nil {
		return errors.Wrap(err, "failed to compute elapsed working minutes")
	}

	recipients := chat.ManagerTelegramIDs
	if len(recipients) == 0 {
		settings, err := s.store.GetGlobalSettings(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to load global settings")
		}
		recipients = settings.GlobalManagerTelegramIDs
	}
	if len(recipients) == 0 {
		slog.Warn("sla warning has no resolvable recipients, no alert created", "request_id", requestID, "chat_id", req.ChatID)
		return nil
	}

	for _, managerID := range recipients {
		created, err := s.store.CreateSlaAlert(ctx, &store.CreateSlaAlert{
			UID: shortuuid.New(), RequestID: requestID, AlertType: store.AlertTypeWarning,
			EscalationLevel: 0, MinutesElapsed: elapsed, ManagerTelegramID: managerID,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create warning alert")
		}
		payload, _ := json.Marshal(DeliveryPayload{AlertID: created.ID})
		if _, err := s.queue.Enqueue(ctx, queue.QueueAlerts, JobSendAlert, payload, queue.EnqueueOptions{}); err != nil {
			return errors.Wrap(err, "failed to enqueue warning delivery job")
		}
	}
	return nil
}

// ScheduleNextEscalation is called by the delivery worker once a level-N
// alert has been delivered. It chains the next level if the request is
// still open and the chain has not exhausted maxEscalations.
func (s *Service) ScheduleNextEscalation(ctx context.Context, requestID int64, currentLevel int) error {
	settings, err := s.store.GetGlobalSettings(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to load global settings")
	}
	nextLevel := currentLevel + 1
	if nextLevel > settings.MaxEscalations {
		return nil
	}

	req, err := s.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil || req.Status == store.RequestStatusAnswered || req.Status == store.RequestStatusClosed {
		return nil
	}

	payload, err := json.Marshal(EscalationPayload{RequestID: requestID, Level: nextLevel})
	if err != nil {
		return errors.Wrap(err, "failed to marshal escalation payload")
	}
	_, err = s.queue.Enqueue(ctx, queue.QueueSLATimers, JobEscalation, payload, queue.EnqueueOptions{
		DelayMs: int64(settings.EscalationIntervalMinutes) * 60_000,
		JobID:   queue.EscalationJobID(requestID, nextLevel),
		Attempts: 1,
	})
	return errors.Wrap(err, "failed to enqueue escalation job")
}

// OnEscalation is the sla-timers handler for a fired escalation job: it
// re-creates alerts at the new level for the same recipient set as level 0.
func (s *Service) OnEscalation(ctx context.Context, requestID int64, level int) error {
	req, err := s.store.GetClientRequest(ctx, &store.FindClientRequest{ID: &requestID})
	if err != nil {
		return errors.Wrap(err, "failed to load client request")
	}
	if req == nil || req.Status == store.RequestStatusAnswered || req.Status == store.RequestStatusClosed {
		return nil
	}

	existing, err := s.store.ListSlaAlerts(ctx, &store.FindSlaAlert{RequestID: &requestID, EscalationLevel: intPtr(0)})
	if err != nil {
		return errors.Wrap(err, "failed to load prior alerts")
	}
	recipients := make([]int64, 0, len(existing))
	for _, a := range existing {
		recipients = append(recipients, a.ManagerTelegramID)
	}
	if len(recipients) == 0 {
		return nil
	}

	chat, err := s.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return errors.Wrap(err, "failed to load chat")
	}
	schedule, err := timer.ResolveSchedule(ctx, s.store, req.ChatID, chat.Is24x7, s.defaultTimezone)
	if err != nil {
		return errors.Wrap(err, "failed to resolve working-hours schedule")
	}
	elapsed, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, time.Now(), schedule)
	if err != nil {
		return errors.Wrap(err, "failed to compute elapsed working minutes")
	}

	for _, managerID := range recipients {
		created, err := s.store.CreateSlaAlert(ctx, &store.CreateSlaAlert{
			UID: shortuuid.New(), RequestID: requestID, AlertType: store.AlertTypeBreach,
			EscalationLevel: level, MinutesElapsed: elapsed, ManagerTelegramID: managerID,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create escalation alert")
		}
		payload, _ := json.Marshal(DeliveryPayload{AlertID: created.ID})
		if _, err := s.queue.Enqueue(ctx, queue.QueueAlerts, JobSendAlert, payload, queue.EnqueueOptions{}); err != nil {
			return errors.Wrap(err, "failed to enqueue escalation delivery job")
		}
	}
	return nil
}

// ResolveAlert closes one alert's escalation chain. It is idempotent: a
// second call against an already-resolved alert is a no-op.
func (s *Service) ResolveAlert(ctx context.Context, alertID int64, action store.ResolvedAction, userID *int64) error {
	a, err := s.store.GetSlaAlert(ctx, &store.FindSlaAlert{ID: &alertID})
	if err != nil {
		return errors.Wrap(err, "failed to load alert")
	}
	if a == nil {
		return apperror.NotFound("alert %d not found", alertID)
	}
	if a.ResolvedAction != nil {
		return nil
	}

	now := time.Now()
	if _, err := s.store.UpdateSlaAlert(ctx, &store.UpdateSlaAlert{
		ID: alertID, ResolvedAction: &action, AcknowledgedAt: &now, AcknowledgedBy: userID,
	}); err != nil {
		return errors.Wrap(err, "failed to update alert")
	}

	s.cancelOutstandingEscalations(ctx, a.RequestID)

	if action == store.ResolvedActionMarkResolved || action == store.ResolvedActionAccountantResponded {
		var respondedBy int64
		if userID != nil {
			respondedBy = *userID
		}
		if _, err := s.timer.StopTimer(ctx, timer.StopParams{
			RequestID: a.RequestID, RespondedBy: respondedBy, ResponseAt: now,
		}); err != nil {
			return errors.Wrap(err, "failed to mark request answered")
		}
	}
	return nil
}

// OnAccountantResponseDetected cancels the full job chain for a request
// once the ingest path sees an accountant reply that resolves it.
func (s *Service) OnAccountantResponseDetected(ctx context.Context, requestID int64) error {
	s.queue.Cancel(ctx, queue.QueueSLATimers, queue.SLATimerJobID(requestID))
	s.queue.Cancel(ctx, queue.QueueSLATimers, queue.WarningJobID(requestID))
	s.cancelOutstandingEscalations(ctx, requestID)
	return nil
}

func (s *Service) cancelOutstandingEscalations(ctx context.Context, requestID int64) {
	settings, err := s.store.GetGlobalSettings(ctx)
	maxLevel := 10
	if err == nil {
		maxLevel = settings.MaxEscalations
	}
	for level := 1; level <= maxLevel; level++ {
		s.queue.Cancel(ctx, queue.QueueSLATimers, queue.EscalationJobID(requestID, level))
	}
}

func intPtr(v int) *int { return &v }
