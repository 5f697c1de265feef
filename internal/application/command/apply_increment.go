package command

import (
	"context"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/achievement"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/pkg/circuitbreaker"
	"github.com/arcadehub/arcade-events/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLY INCREMENT
// The consumer side of the aggregation pipeline. Deliveries arrive
// at-least-once; the processed marker turns them into exactly-once counter
// effect. Marker first, then increment: a crash between the two leaves the
// counter behind the log, which reconciliation repairs. The reverse order
// could double-count, which reconciliation could not distinguish from a
// legitimate score.
// ══════════════════════════════════════════════════════════════════════════════

// ApplyIncrementHandler applies score deltas to the counter store and
// unlocks achievements. Implements stats.Applier.
type ApplyIncrementHandler struct {
	counter      stats.CounterStore
	achievements achievement.Repository
	cache        stats.Cache
	breaker      *circuitbreaker.CircuitBreaker
	log          *logger.Logger
}

// NewApplyIncrementHandler creates a new ApplyIncrementHandler. The
// breaker guards every counter store call; a nil breaker means calls go
// straight through.
func NewApplyIncrementHandler(
	counter stats.CounterStore,
	achievements achievement.Repository,
	cache stats.Cache,
	breaker *circuitbreaker.CircuitBreaker,
	log *logger.Logger,
) *ApplyIncrementHandler {
	if log == nil {
		log = logger.Default()
	}

	return &ApplyIncrementHandler{
		counter:      counter,
		achievements: achievements,
		cache:        cache,
		breaker:      breaker,
		log:          log,
	}
}

// Apply applies a single increment. Safe to call any number of times for
// the same increment: only the first delivery moves the counter.
func (h *ApplyIncrementHandler) Apply(ctx context.Context, inc stats.Increment) error {
	var first bool
	err := h.guarded(ctx, func(ctx context.Context) error {
		var markErr error
		first, markErr = h.counter.MarkApplied(ctx, inc.EventID)
		return markErr
	})
	if err != nil {
		return shared.WrapError("stats", "Apply", shared.ErrCounterUnavailable, "failed to mark event applied", err)
	}

	if !first {
		metrics.AggregationsDuplicate.Inc()
		h.log.Debug("increment already applied, skipping",
			logger.EventID(inc.EventID.String()),
			logger.UserID(int64(inc.UserID)),
		)
		return nil
	}

	var score int64
	err = h.guarded(ctx, func(ctx context.Context) error {
		var incErr error
		score, incErr = h.counter.Increment(ctx, inc.UserID, inc.Delta)
		return incErr
	})
	if err != nil {
		// Marker is set but the delta never landed. The counter now lags
		// the log until the reconciliation sweep rebuilds it.
		h.log.Error("counter increment failed after marker was set",
			logger.EventID(inc.EventID.String()),
			logger.UserID(int64(inc.UserID)),
			logger.Delta(inc.Delta),
			logger.Err(err),
		)
		return shared.WrapError("stats", "Apply", shared.ErrCounterUnavailable, "failed to increment counter", err)
	}

	metrics.AggregationsApplied.Inc()

	h.unlockAchievement(ctx, inc)

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, inc.UserID); err != nil {
			h.log.Warn("failed to invalidate stats cache",
				logger.UserID(int64(inc.UserID)),
				logger.Err(err),
			)
		}
	}

	h.log.Debug("increment applied",
		logger.EventID(inc.EventID.String()),
		logger.UserID(int64(inc.UserID)),
		logger.Delta(inc.Delta),
		logger.Score(score),
	)

	return nil
}

// unlockAchievement unlocks the achievement tied to the event type, if
// any. Achievement failures never fail the increment: the unlock is
// retried naturally the next time the user produces the same event type.
func (h *ApplyIncrementHandler) unlockAchievement(ctx context.Context, inc stats.Increment) {
	name, ok := achievement.ForEventType(inc.EventType)
	if !ok || h.achievements == nil {
		return
	}

	a, err := achievement.New(inc.UserID, name, time.Now().UTC())
	if err != nil {
		h.log.Warn("failed to build achievement",
			logger.UserID(int64(inc.UserID)),
			logger.Err(err),
		)
		return
	}

	unlocked, err := h.achievements.Unlock(ctx, a)
	if err != nil {
		h.log.Warn("failed to unlock achievement",
			logger.UserID(int64(inc.UserID)),
			logger.String("achievement", name.String()),
			logger.Err(err),
		)
		return
	}

	if unlocked {
		metrics.AchievementsUnlocked.WithLabelValues(name.String()).Inc()
		h.log.Info("achievement unlocked",
			logger.UserID(int64(inc.UserID)),
			logger.String("achievement", name.String()),
		)
	}
}

func (h *ApplyIncrementHandler) guarded(ctx context.Context, fn func(context.Context) error) error {
	if h.breaker == nil {
		return fn(ctx)
	}
	return h.breaker.Execute(ctx, fn)
}
