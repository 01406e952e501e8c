package jobs

import (
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

const (
	JobKindAuthCleanup = "auth_cleanup"
)

const (
	// AuthCleanupMaxAttempts is 1 because the sweep never returns an
	// error and the next daily run picks up whatever was left.
	AuthCleanupMaxAttempts = 1
	DefaultMaxAttempts     = 5
)

// CleanupHour is the local hour at which the daily sweep runs.
const CleanupHour = 3

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindAuthCleanup: {
				MaxAttempts: AuthCleanupMaxAttempts,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

// InsertOptsForKind returns default insert options for a job kind.
func InsertOptsForKind(kind string) river.InsertOpts {
	config := NewRetryPolicy().configFor(kind)
	return river.InsertOpts{MaxAttempts: config.MaxAttempts}
}

// NewClientConfig builds a River client configuration. riverLogger receives
// River's own logs; failures are reported through logger.
func NewClientConfig(workers *river.Workers, riverLogger *slog.Logger, logger zerolog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob) *river.Config {
	policy := NewRetryPolicy()
	config := &river.Config{
		Workers:      workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: periodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Hooks:        hooks,
		ErrorHandler: newErrorHandler(logger),
	}
	if riverLogger != nil {
		config.Logger = riverLogger
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, riverLogger *slog.Logger, logger zerolog.Logger, hooks []rivertype.Hook, periodicJobs []*river.PeriodicJob) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(workers, riverLogger, logger, hooks, periodicJobs))
}

// DailyAt is a river.PeriodicSchedule firing once a day at a wall-clock time.
type DailyAt struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// Next returns the first matching wall-clock time strictly after current.
func (d DailyAt) Next(current time.Time) time.Time {
	loc := d.Loc
	if loc == nil {
		loc = time.Local
	}
	local := current.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// NewPeriodicJobs schedules the auth-row sweep daily at 03:00 in loc.
func NewPeriodicJobs(loc *time.Location) []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			DailyAt{Hour: CleanupHour, Loc: loc},
			func() (river.JobArgs, *river.InsertOpts) {
				opts := InsertOptsForKind(JobKindAuthCleanup)
				return AuthCleanupArgs{}, &opts
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseDelay: 1 * time.Minute, MaxDelay: 1 * time.Hour}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}
