package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DBPoolConns reports pool connections by state: total, acquired, idle, max.
	DBPoolConns = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_connections",
			Help:      "Database pool connections by state",
		},
		[]string{"state"},
	)

	DBQueryDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Duration of tracked database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	DBErrors = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_errors_total",
			Help:      "Failed database operations by error class",
		},
		[]string{"operation", "class"},
	)
)

// PoolStatter is the slice of *pgxpool.Pool the collector reads.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// DBCollector samples pool stats on an interval until stopped.
type DBCollector struct {
	pool PoolStatter
	stop chan struct{}
	once sync.Once
}

func NewDBCollector(pool PoolStatter) *DBCollector {
	return &DBCollector{pool: pool, stop: make(chan struct{})}
}

func (c *DBCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop is safe to call more than once.
func (c *DBCollector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *DBCollector) collect() {
	if c.pool == nil {
		return
	}
	stat := c.pool.Stat()
	if stat == nil {
		return
	}
	DBPoolConns.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBPoolConns.WithLabelValues("acquired").Set(float64(stat.AcquiredConns()))
	DBPoolConns.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConns.WithLabelValues("max").Set(float64(stat.MaxConns()))
}

// RecordQuery observes an operation that started at start and, when err is
// set, counts it under its error class.
func RecordQuery(operation string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		DBErrors.WithLabelValues(operation, ErrorClass(err)).Inc()
	}
}

// ErrorClass buckets a database error for the db_errors_total label.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, pgx.ErrNoRows):
		return "no_rows"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "22P02":
			return "invalid_input"
		}
		return "sqlstate_" + pgErr.Code
	}
	return "other"
}
