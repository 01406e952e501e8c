package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/eventviewer/server/internal/metrics"
)

// Sweep targets, keyed by the table label used in logs and metrics.
var sweepTargets = []struct {
	table string
	where string
}{
	{"otps", `expires_at <= $1 OR NOT valid OR verified`},
	{"refresh_tokens", `expires_at <= $1`},
	{"blacklisted_tokens", `expires_at <= $1`},
	{"reset_tokens", `expires_at <= $1 OR verified`},
}

// SweepTables lists the tables Sweep touches, in order.
func SweepTables() []string {
	out := make([]string, len(sweepTargets))
	for i, t := range sweepTargets {
		out[i] = t.table
	}
	return out
}

type CleanupRepository struct {
	conn
}

// Sweep deletes dead auth rows and returns per-table counts. With dryRun it
// only counts. A failing table does not stop the others; the first error is
// returned alongside the counts that did succeed.
func (r *CleanupRepository) Sweep(ctx context.Context, now time.Time, dryRun bool) (map[string]int64, error) {
	counts := make(map[string]int64, len(sweepTargets))
	var firstErr error
	for _, target := range sweepTargets {
		n, err := r.sweepOne(ctx, target.table, target.where, now, dryRun)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", target.table, err)
			}
			continue
		}
		counts[target.table] = n
	}
	return counts, firstErr
}

func (r *CleanupRepository) sweepOne(ctx context.Context, table, where string, now time.Time, dryRun bool) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("sweep_"+table, start, err) }()
	if dryRun {
		err = r.queryer().QueryRow(ctx, `SELECT count(*) FROM `+table+` WHERE `+where, now).Scan(&n)
		return n, err
	}
	tag, err := r.queryer().Exec(ctx, `DELETE FROM `+table+` WHERE `+where, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
