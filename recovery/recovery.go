// Package recovery reconciles SLA timer state against the durable queue
// once at startup: requests whose timer was started but whose breach-check
// job is missing (a restart during the gap between a crash and the next
// poll) are re-scheduled or, if already past due, escalated immediately.
package recovery

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/avito-tech/accountant-sla/alert"
	"github.com/avito-tech/accountant-sla/queue"
	"github.com/avito-tech/accountant-sla/store"
	"github.com/avito-tech/accountant-sla/timer"
	"github.com/avito-tech/accountant-sla/workinghours"
)

// reconcileConcurrency bounds how many pending requests Run reconciles at
// once. A restart after extended downtime can leave thousands of requests
// without a scheduled breach-check job, each reconciliation doing several
// sequential store and queue round-trips; this runs before the asynq
// worker pool is even started, so asynq's own Concurrency setting does
// not cover it.
const reconcileConcurrency = 10

// Report summarizes what Run did, for startup logging.
type Report struct {
	TotalPending  int
	Rescheduled   int
	Breached      int
	AlreadyActive int
	Failed        int
}

// QueueClient is the subset of *queue.Client recovery depends on; it
// extends timer.QueueClient with Get so it can tell whether a breach-check
// job is already scheduled before deciding to reschedule one.
type QueueClient interface {
	timer.QueueClient
	Get(ctx context.Context, queueName, jobID string) (*queue.Job, error)
}

type Service struct {
	store           *store.Store
	queue           QueueClient
	alerts          *alert.Service
	defaultTimezone string
}

func NewService(st *store.Store, q QueueClient, alerts *alert.Service, defaultTimezone string) *Service {
	return &Service{store: st, queue: q, alerts: alerts, defaultTimezone: defaultTimezone}
}

// Run loads every request with status=pending and a started timer, and
// for each one not already active on the queue, reschedules its
// breach-check (or escalates immediately if time has already run out).
func (s *Service) Run(ctx context.Context) (Report, error) {
	pending, err := s.store.ListClientRequests(ctx, &store.FindClientRequest{Status: statusPtr(store.RequestStatusPending)})
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to list pending requests")
	}

	var (
		report Report
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	sem := semaphore.NewWeighted(reconcileConcurrency)

	for _, req := range pending {
		if req.SlaTimerStartedAt == nil {
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			report.Failed++
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(req *store.ClientRequest) {
			defer wg.Done()
			defer sem.Release(1)

			outcome := s.reconcile(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			report.TotalPending++
			switch outcome {
			case outcomeAlreadyActive:
				report.AlreadyActive++
			case outcomeBreached:
				report.Breached++
			case outcomeRescheduled:
				report.Rescheduled++
			case outcomeFailed:
				report.Failed++
			}
		}(req)
	}
	wg.Wait()

	return report, nil
}

type reconcileOutcome int

const (
	outcomeRescheduled reconcileOutcome = iota
	outcomeBreached
	outcomeAlreadyActive
	outcomeFailed
)

// reconcile wraps reconcileOne with the already-scheduled check and error
// logging, returning a single outcome tag so Run's goroutines can report
// into Report without each holding its own branch of locking logic.
func (s *Service) reconcile(ctx context.Context, req *store.ClientRequest) reconcileOutcome {
	if existing, err := s.queue.Get(ctx, queue.QueueSLATimers, queue.SLATimerJobID(req.ID)); err == nil && existing != nil {
		return outcomeAlreadyActive
	}

	breached, err := s.reconcileOne(ctx, req)
	if err != nil {
		slog.Error("failed to reconcile sla timer during recovery", "request_id", req.ID, "error", err)
		return outcomeFailed
	}
	if breached {
		return outcomeBreached
	}
	return outcomeRescheduled
}

// reconcileOne reschedules the missing breach-check job for one pending
// request, or escalates it immediately if the threshold already elapsed
// during the downtime gap. The returned bool reports which branch ran, so
// Run can tell Report.Breached apart from Report.Rescheduled.
func (s *Service) reconcileOne(ctx context.Context, req *store.ClientRequest) (bool, error) {
	chat, err := s.store.GetChat(ctx, &store.FindChat{ID: &req.ChatID})
	if err != nil {
		return false, errors.Wrap(err, "failed to load chat")
	}
	if chat == nil {
		return false, errors.Errorf("chat %d not found", req.ChatID)
	}
	schedule, err := timer.ResolveSchedule(ctx, s.store, req.ChatID, chat.Is24x7, s.defaultTimezone)
	if err != nil {
		return false, errors.Wrap(err, "failed to resolve working-hours schedule")
	}

	now := time.Now()
	elapsed, err := workinghours.CalculateWorkingMinutes(req.ReceivedAt, now, schedule)
	if err != nil {
		return false, errors.Wrap(err, "failed to compute elapsed working minutes")
	}

	if elapsed >= float64(req.ThresholdMinutes) {
		return true, s.alerts.OnBreachCheck(ctx, req.ID)
	}

	delay, err := workinghours.CalculateDelayUntilBreach(req.ReceivedAt, float64(req.ThresholdMinutes), schedule, now)
	if err != nil {
		return false, errors.Wrap(err, "failed to compute breach delay")
	}
	if delay <= 0 {
		delay = time.Second
	}

	payload, err := json.Marshal(timer.JobPayload{RequestID: req.ID})
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal breach-check payload")
	}
	_, err = s.queue.Enqueue(ctx, queue.QueueSLATimers, timer.JobBreachCheck, payload, queue.EnqueueOptions{
		DelayMs: delay.Milliseconds(), JobID: queue.SLATimerJobID(req.ID), Attempts: 1,
	})
	return false, errors.Wrap(err, "failed to reschedule breach-check job")
}

func statusPtr(s store.RequestStatus) *store.RequestStatus { return &s }
