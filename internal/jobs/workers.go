// Package jobs runs the background sweep that deletes expired auth rows.
package jobs

import (
	"context"
	"time"

	"github.com/eventviewer/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// AuthCleanupArgs defines the daily sweep of expired OTPs, refresh tokens,
// blacklist rows and reset tokens.
type AuthCleanupArgs struct {
	DryRun bool `json:"dry_run,omitempty"`
}

func (AuthCleanupArgs) Kind() string { return JobKindAuthCleanup }

// Sweeper deletes (or, with dryRun, counts) dead rows per table.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time, dryRun bool) (map[string]int64, error)
}

type AuthCleanupWorker struct {
	river.WorkerDefaults[AuthCleanupArgs]
	Sweeper Sweeper
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (AuthCleanupWorker) Kind() string { return JobKindAuthCleanup }

// Work never fails the job. Sweep errors are logged and counted only.
func (w AuthCleanupWorker) Work(ctx context.Context, job *river.Job[AuthCleanupArgs]) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	RunCleanup(ctx, w.Sweeper, now(), job.Args.DryRun, w.Logger)
	return nil
}

// RunCleanup performs one sweep and records its outcome. It is shared by
// the River worker and the cleanup command.
func RunCleanup(ctx context.Context, sweeper Sweeper, now time.Time, dryRun bool, logger zerolog.Logger) map[string]int64 {
	logger = logger.With().Str("component", "cleanup").Bool("dry_run", dryRun).Logger()
	if sweeper == nil {
		metrics.CleanupErrors.Inc()
		logger.Error().Msg("cleanup sweeper not configured")
		return nil
	}

	start := time.Now()
	counts, err := sweeper.Sweep(ctx, now, dryRun)
	if err != nil {
		metrics.CleanupErrors.Inc()
		logger.Error().Err(err).Msg("cleanup sweep failed")
	}

	var total int64
	event := logger.Info()
	for table, n := range counts {
		total += n
		event = event.Int64(table, n)
		if !dryRun {
			metrics.CleanupDeleted.WithLabelValues(table).Add(float64(n))
		}
	}
	event.Int64("total", total).Dur("duration", time.Since(start)).Msg("cleanup sweep completed")
	return counts
}

// NewWorkers registers the sweep worker.
func NewWorkers(sweeper Sweeper, logger zerolog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker(workers, AuthCleanupWorker{Sweeper: sweeper, Logger: logger})
	return workers
}
