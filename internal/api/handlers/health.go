package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger is an optional dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck is the /readyz body.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker reports database, migration and Redis health. A nil redis
// means the instance runs without cross-instance fan-out.
type HealthChecker struct {
	pool      *pgxpool.Pool
	redis     Pinger
	version   string
	gitCommit string
	now       func() time.Time
}

func NewHealthChecker(pool *pgxpool.Pool, redis Pinger, version, gitCommit string) *HealthChecker {
	return &HealthChecker{pool: pool, redis: redis, version: version, gitCommit: gitCommit, now: time.Now}
}

// Healthz is the liveness probe. It never touches dependencies.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

// Readyz fails with 503 when any required dependency is unreachable or the
// schema is in a dirty migration state.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
		}
		if h.redis != nil {
			checks["redis"] = h.checkRedis(ctx)
		}

		overall := "healthy"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overall = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
	})
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "Database pool not initialized"}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&result)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database query failed"
		switch {
		case dbCtx.Err() == context.DeadlineExceeded:
			message = "Database query timed out after 2 seconds"
		case strings.Contains(err.Error(), "connection refused"):
			message = "Database connection refused"
		case strings.Contains(err.Error(), "authentication failed"):
			message = "Database authentication failed"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: map[string]any{"error": err.Error()}}
	}

	stats := h.pool.Stat()
	return CheckResult{
		Status:    "pass",
		Message:   "PostgreSQL connection successful",
		LatencyMs: latency,
		Details: map[string]any{
			"max_connections":      stats.MaxConns(),
			"total_connections":    stats.TotalConns(),
			"idle_connections":     stats.IdleConns(),
			"acquired_connections": stats.AcquiredConns(),
		},
	}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "Database pool not initialized"}
	}

	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var version int64
	var dirty bool
	err := h.pool.QueryRow(migCtx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Failed to query migration version"
		if strings.Contains(err.Error(), "does not exist") {
			message = "Migrations table not found; run `server migrate up`"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: map[string]any{"error": err.Error()}}
	}
	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details:   map[string]any{"version": version, "dirty": true},
		}
	}
	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version},
	}
}

func (h *HealthChecker) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()
	redisCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.redis.Ping(redisCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{Status: "fail", Message: "Redis ping failed", LatencyMs: latency, Details: map[string]any{"error": err.Error()}}
	}
	return CheckResult{Status: "pass", Message: "Redis reachable", LatencyMs: latency}
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
