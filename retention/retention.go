// Package retention runs the periodic sweeps that keep the store from
// growing without bound: purging expired classification-cache rows on a
// tight cycle, and enforcing the configured data-retention horizon over
// closed client requests and their message history on a daily cycle.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/avito-tech/accountant-sla/store"
)

// Report summarizes one sweep's effect, for logging.
type Report struct {
	ClassificationCachePurged int64
	ChatMessagesPurged        int64
	ClientRequestsPurged      int64
}

type Sweeper struct {
	store *store.Store
	cron  *cron.Cron

	// cacheSweepSchedule and horizonSweepSchedule are cron expressions;
	// exposed so tests can run both sweeps on a tight interval instead of
	// waiting for the real schedule.
	cacheSweepSchedule   string
	horizonSweepSchedule string
}

// NewSweeper builds a Sweeper with the default schedule: classification
// cache cleanup hourly, retention-horizon enforcement once a day at 03:00
// server time, off-peak for most installations.
func NewSweeper(st *store.Store) *Sweeper {
	return &Sweeper{
		store:                st,
		cacheSweepSchedule:   "@hourly",
		horizonSweepSchedule: "0 3 * * *",
	}
}

// Start registers both sweeps with an internal cron scheduler and starts
// it. It does not block; call Stop to shut the scheduler down.
func (sw *Sweeper) Start(ctx context.Context) error {
	sw.cron = cron.New()

	if _, err := sw.cron.AddFunc(sw.cacheSweepSchedule, func() {
		sw.runGuarded(ctx, "classification-cache-cleanup", sw.SweepClassificationCache)
	}); err != nil {
		return errors.Wrap(err, "failed to register classification cache sweep")
	}

	if _, err := sw.cron.AddFunc(sw.horizonSweepSchedule, func() {
		sw.runGuarded(ctx, "data-retention-horizon", sw.SweepRetentionHorizon)
	}); err != nil {
		return errors.Wrap(err, "failed to register data-retention sweep")
	}

	sw.cron.Start()
	return nil
}

// Stop waits for any in-flight sweep to finish, bounded by ctx.
func (sw *Sweeper) Stop(ctx context.Context) {
	if sw.cron == nil {
		return
	}
	done := sw.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("retention sweeper stop timed out")
	}
}

// runGuarded isolates one sweep's panics and errors so a bad run never
// brings down the whole scheduler.
func (sw *Sweeper) runGuarded(ctx context.Context, name string, fn func(context.Context) (Report, error)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("retention sweep panicked", "sweep", name, "panic", r)
		}
	}()

	start := time.Now()
	report, err := fn(ctx)
	if err != nil {
		slog.Error("retention sweep failed", "sweep", name, "error", err, "duration", time.Since(start))
		return
	}
	slog.Info("retention sweep completed", "sweep", name, "duration", time.Since(start),
		"classification_cache_purged", report.ClassificationCachePurged,
		"chat_messages_purged", report.ChatMessagesPurged,
		"client_requests_purged", report.ClientRequestsPurged)
}

// SweepClassificationCache deletes cache rows past their own TTL. This
// runs independently of the data-retention horizon: a cache entry is dead
// weight the moment it expires, not after GlobalSettings.DataRetentionDays.
func (sw *Sweeper) SweepClassificationCache(ctx context.Context) (Report, error) {
	n, err := sw.store.PurgeExpiredClassificationCache(ctx, time.Now())
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to purge expired classification cache")
	}
	return Report{ClassificationCachePurged: n}, nil
}

// SweepRetentionHorizon enforces GlobalSettings.DataRetentionDays: chat
// messages and terminal (answered/closed) client requests older than the
// horizon are deleted. Requests still open, however old, are left alone.
func (sw *Sweeper) SweepRetentionHorizon(ctx context.Context) (Report, error) {
	settings, err := sw.store.GetGlobalSettings(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to load global settings")
	}
	if settings.DataRetentionDays <= 0 {
		return Report{}, nil
	}

	horizon := time.Now().AddDate(0, 0, -settings.DataRetentionDays)

	messagesPurged, err := sw.store.PurgeOldChatMessages(ctx, horizon)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to purge old chat messages")
	}
	requestsPurged, err := sw.store.PurgeClosedClientRequests(ctx, horizon)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to purge closed client requests")
	}

	return Report{ChatMessagesPurged: messagesPurged, ClientRequestsPurged: requestsPurged}, nil
}
