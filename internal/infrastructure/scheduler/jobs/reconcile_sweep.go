// Package jobs contains the scheduled background jobs of the event pipeline.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/arcadehub/arcade-events/internal/application/command"
	"github.com/arcadehub/arcade-events/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileSweepJob periodically rebuilds score counters from the event log
// for users active inside a sliding window. The event log is authoritative;
// counters lost to Redis restarts or dropped queue deliveries converge back
// to the replayed value on the next sweep.
type ReconcileSweepJob struct {
	sweep  *command.ReconcileActiveHandler
	logger *slog.Logger

	config ReconcileSweepConfig

	lastRunStats atomic.Value // *ReconcileSweepStats
}

// ReconcileSweepConfig contains configuration for the sweep job.
type ReconcileSweepConfig struct {
	// ActivityWindow bounds the sweep to users with events newer than
	// now minus the window. Zero sweeps all history.
	ActivityWindow time.Duration

	// Timeout is the maximum duration of one sweep.
	Timeout time.Duration
}

// ReconcileSweepStats summarizes the last completed sweep.
type ReconcileSweepStats struct {
	StartedAt     time.Time
	UsersChecked  int
	UsersRepaired int
	TotalDrift    int64
	Failures      int
	Duration      time.Duration
}

// NewReconcileSweepJob creates the sweep job. A nil logger falls back to
// slog.Default.
func NewReconcileSweepJob(sweep *command.ReconcileActiveHandler, config ReconcileSweepConfig, logger *slog.Logger) *ReconcileSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &ReconcileSweepJob{
		sweep:  sweep,
		logger: logger,
		config: config,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileSweepJob) Name() string {
	return "reconcile_sweep"
}

// Description implements scheduler.Job.
func (j *ReconcileSweepJob) Description() string {
	return "rebuilds score counters from the event log for recently active users"
}

// Run implements scheduler.Job.
func (j *ReconcileSweepJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	startedAt := time.Now()

	var since time.Time
	if j.config.ActivityWindow > 0 {
		since = timeutil.WindowSince(j.config.ActivityWindow)
	}

	result, err := j.sweep.Handle(ctx, command.ReconcileActiveCommand{Since: since})
	if err != nil {
		return fmt.Errorf("reconcile sweep: %w", err)
	}

	j.lastRunStats.Store(&ReconcileSweepStats{
		StartedAt:     startedAt,
		UsersChecked:  result.UsersChecked,
		UsersRepaired: result.UsersRepaired,
		TotalDrift:    result.TotalDrift,
		Failures:      result.Failures,
		Duration:      result.Duration,
	})

	j.logger.Info("reconcile sweep finished",
		"users_checked", result.UsersChecked,
		"users_repaired", result.UsersRepaired,
		"total_drift", result.TotalDrift,
		"failures", result.Failures,
		"duration", result.Duration.String(),
	)

	if result.Failures > 0 {
		return fmt.Errorf("reconcile sweep: %d of %d users failed", result.Failures, result.UsersChecked)
	}
	return nil
}

// LastRunStats returns the stats of the most recent completed sweep, or
// nil when no sweep has finished yet.
func (j *ReconcileSweepJob) LastRunStats() *ReconcileSweepStats {
	stats, _ := j.lastRunStats.Load().(*ReconcileSweepStats)
	return stats
}
