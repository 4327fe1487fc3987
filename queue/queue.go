// Package queue wraps github.com/hibiken/asynq as the durable delayed job
// queue backing SLA timers and alert delivery. Data-retention sweeps run
// on their own cron schedule (see the retention package) rather than
// through this queue.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
)

const (
	QueueSLATimers = "sla-timers"
	QueueAlerts    = "alerts"
)

// retainCompleted and retainFailed are not referenced: Enqueue keeps each
// finished task for 24 hours via asynq.Retention, with no count cap.
const (
	retainCompleted = 100
	retainFailed    = 1000
)

// EnqueueOptions mirrors the delayed job queue contract: an optional
// delay, a stable job ID for idempotent scheduling, and a retry policy.
type EnqueueOptions struct {
	DelayMs     int64
	JobID       string
	Attempts    int           // total tries including the first; 0 means 3
	BackoffBase time.Duration // not applied; retry delays are asynq's default
}

// Job is the subset of task state callers need to report or reason about.
type Job struct {
	ID    string
	Queue string
	State string
}

type Client struct {
	asynqClient *asynq.Client
	inspector   *asynq.Inspector
}

func NewClient(redisAddr, redisPassword string, redisDB int) *Client {
	opt := asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB}
	return &Client{
		asynqClient: asynq.NewClient(opt),
		inspector:   asynq.NewInspector(opt),
	}
}

func (c *Client) Close() error {
	if err := c.asynqClient.Close(); err != nil {
		return err
	}
	return c.inspector.Close()
}

// Enqueue schedules jobName with payload on queueName. A duplicate JobID
// is not an error: the existing job is returned as-is, matching the
// "replace or keep existing" contract the timer manager is built to
// tolerate.
func (c *Client) Enqueue(ctx context.Context, queueName, jobName string, payload []byte, opts EnqueueOptions) (*Job, error) {
	task := asynq.NewTask(jobName, payload)

	taskOpts := []asynq.Option{asynq.Queue(queueName)}
	if opts.DelayMs > 0 {
		taskOpts = append(taskOpts, asynq.ProcessIn(time.Duration(opts.DelayMs)*time.Millisecond))
	}
	if opts.JobID != "" {
		taskOpts = append(taskOpts, asynq.TaskID(opts.JobID))
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	taskOpts = append(taskOpts, asynq.MaxRetry(attempts-1))
	taskOpts = append(taskOpts, asynq.Retention(24*time.Hour))

	info, err := c.asynqClient.EnqueueContext(ctx, task, taskOpts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			existing, getErr := c.Get(ctx, queueName, opts.JobID)
			if getErr != nil {
				return nil, errors.Wrap(getErr, "job id conflict but existing job could not be fetched")
			}
			return existing, nil
		}
		return nil, errors.Wrap(err, "failed to enqueue job")
	}
	return &Job{ID: info.ID, Queue: info.Queue, State: info.State.String()}, nil
}

// Cancel is best-effort: it returns false if the job is not found or is
// already running/completed.
func (c *Client) Cancel(ctx context.Context, queueName, jobID string) bool {
	if jobID == "" {
		return false
	}
	info, err := c.inspector.GetTaskInfo(queueName, jobID)
	if err != nil || info == nil {
		return false
	}
	switch info.State {
	case asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return c.inspector.DeleteTask(queueName, jobID) == nil
	case asynq.TaskStatePending:
		return c.inspector.DeleteTask(queueName, jobID) == nil
	default:
		return false
	}
}

func (c *Client) Get(ctx context.Context, queueName, jobID string) (*Job, error) {
	info, err := c.inspector.GetTaskInfo(queueName, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to fetch job")
	}
	return &Job{ID: info.ID, Queue: info.Queue, State: info.State.String()}, nil
}

// SLATimerJobID / WarningJobID / EscalationJobID produce the deterministic
// job identifiers the timer manager and escalation state machine depend
// on for idempotent scheduling.
func SLATimerJobID(requestID int64) string {
	return fmt.Sprintf("sla-%d", requestID)
}

func WarningJobID(requestID int64) string {
	return fmt.Sprintf("sla-warn-%d", requestID)
}

func EscalationJobID(requestID int64, level int) string {
	return fmt.Sprintf("escalation-%d-%d", requestID, level)
}
