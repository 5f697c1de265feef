package command

import (
	"context"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE USER COMMAND
// Rebuilds a user's counter from the event log. This is the recovery path
// for every crash window the pipeline leaves open: lost enqueues, markers
// without increments, counter store data loss. The log is authoritative,
// so reconciliation always overwrites the counter with the replayed sum.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileUserCommand contains the data to reconcile one user's counter.
type ReconcileUserCommand struct {
	// UserID is the user whose counter is rebuilt.
	UserID int64

	// DryRun computes the drift without writing the counter.
	DryRun bool
}

// Validate validates the command.
func (c ReconcileUserCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.NewDomainError("stats", "Validate", shared.ErrInvalidID, "user id must be positive")
	}
	return nil
}

// ReconcileUserResult contains the result of a reconciliation run. It is
// returned verbatim by the admin endpoint, hence the JSON tags.
type ReconcileUserResult struct {
	// UserID is the reconciled user.
	UserID int64 `json:"user_id"`

	// Expected is the score replayed from the event log.
	Expected int64 `json:"expected"`

	// Previous is the counter value before the rebuild. Zero when the
	// counter was absent.
	Previous int64 `json:"previous"`

	// Drift is Expected minus Previous.
	Drift int64 `json:"drift"`

	// Repaired indicates the counter was overwritten.
	Repaired bool `json:"repaired"`

	// EventCount is the number of events replayed.
	EventCount int64 `json:"event_count"`

	// Duration is how long the replay took.
	Duration time.Duration `json:"duration_ns"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileUserHandler handles the ReconcileUserCommand.
type ReconcileUserHandler struct {
	events  event.Repository
	counter stats.CounterStore
	cache   stats.Cache
	scoring event.ScoreFunc
	log     *logger.Logger
}

// NewReconcileUserHandler creates a new ReconcileUserHandler. The scoring
// function must be the same one the ingest path uses, otherwise replayed
// sums diverge from incremental ones.
func NewReconcileUserHandler(
	events event.Repository,
	counter stats.CounterStore,
	cache stats.Cache,
	scoring event.ScoreFunc,
	log *logger.Logger,
) *ReconcileUserHandler {
	if scoring == nil {
		scoring = event.DefaultScoring
	}
	if log == nil {
		log = logger.Default()
	}

	return &ReconcileUserHandler{
		events:  events,
		counter: counter,
		cache:   cache,
		scoring: scoring,
		log:     log,
	}
}

// Handle executes the reconcile user command.
func (h *ReconcileUserHandler) Handle(ctx context.Context, cmd ReconcileUserCommand) (*ReconcileUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	userID := event.UserID(cmd.UserID)

	result := &ReconcileUserResult{UserID: cmd.UserID}

	// Replay the full event sequence. An unknown user simply replays
	// zero events and reconciles to score 0.
	agg, eventCount, err := stats.Replay(ctx, h.events, userID, h.scoring)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("failed").Inc()
		return nil, shared.WrapError("stats", "Reconcile", shared.ErrReconciliation, "event replay failed", err)
	}
	result.Expected = agg.Score
	result.EventCount = eventCount

	previous, present, err := h.counter.Get(ctx, userID)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("failed").Inc()
		return nil, shared.WrapError("stats", "Reconcile", shared.ErrReconciliation, "failed to read counter", err)
	}
	if present {
		result.Previous = previous
	}

	result.Drift = result.Expected - result.Previous
	result.Duration = time.Since(start)

	if cmd.DryRun {
		metrics.Reconciliations.WithLabelValues("dry_run").Inc()
		return result, nil
	}

	if err := h.counter.Set(ctx, userID, result.Expected); err != nil {
		metrics.Reconciliations.WithLabelValues("failed").Inc()
		return nil, shared.WrapError("stats", "Reconcile", shared.ErrReconciliation, "failed to write counter", err)
	}
	result.Repaired = true
	metrics.CounterRebuilds.Inc()

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, userID); err != nil {
			h.log.Warn("failed to invalidate stats cache after reconcile",
				logger.UserID(cmd.UserID),
				logger.Err(err),
			)
		}
	}

	if result.Drift != 0 {
		metrics.Reconciliations.WithLabelValues("repaired").Inc()
		drift := result.Drift
		if drift < 0 {
			drift = -drift
		}
		metrics.ReconcileDrift.Observe(float64(drift))

		h.log.Warn("counter drift repaired",
			logger.UserID(cmd.UserID),
			logger.Int64("expected", result.Expected),
			logger.Int64("previous", result.Previous),
			logger.Int64("drift", result.Drift),
			logger.Latency(result.Duration),
		)
	} else {
		metrics.Reconciliations.WithLabelValues("clean").Inc()
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE ACTIVE USERS
// Periodic sweep over every user with recent activity. Bounded by the
// activity window so the sweep cost scales with traffic, not with the
// total user population.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileActiveCommand reconciles every user active since the cutoff.
type ReconcileActiveCommand struct {
	// Since bounds the sweep. Zero means all history.
	Since time.Time
}

// ReconcileActiveResult summarizes a sweep.
type ReconcileActiveResult struct {
	UsersChecked  int
	UsersRepaired int
	TotalDrift    int64
	Failures      int
	Duration      time.Duration
}

// ReconcileActiveHandler sweeps recently active users.
type ReconcileActiveHandler struct {
	events  event.Repository
	perUser *ReconcileUserHandler
	log     *logger.Logger
}

// NewReconcileActiveHandler creates a new ReconcileActiveHandler.
func NewReconcileActiveHandler(events event.Repository, perUser *ReconcileUserHandler, log *logger.Logger) *ReconcileActiveHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ReconcileActiveHandler{events: events, perUser: perUser, log: log}
}

// Handle executes the sweep. Per-user failures are counted, logged and
// skipped; one broken user must not starve the rest of the sweep.
func (h *ReconcileActiveHandler) Handle(ctx context.Context, cmd ReconcileActiveCommand) (*ReconcileActiveResult, error) {
	start := time.Now()

	userIDs, err := h.events.ActiveUserIDs(ctx, cmd.Since)
	if err != nil {
		return nil, shared.WrapError("stats", "ReconcileActive", shared.ErrReconciliation, "failed to list active users", err)
	}

	result := &ReconcileActiveResult{}

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		res, err := h.perUser.Handle(ctx, ReconcileUserCommand{UserID: int64(userID)})
		if err != nil {
			result.Failures++
			h.log.Error("reconcile sweep: user failed",
				logger.UserID(int64(userID)),
				logger.Err(err),
			)
			continue
		}

		result.UsersChecked++
		if res.Drift != 0 {
			result.UsersRepaired++
			drift := res.Drift
			if drift < 0 {
				drift = -drift
			}
			result.TotalDrift += drift
		}
	}

	result.Duration = time.Since(start)

	h.log.Info("reconcile sweep finished",
		logger.Int("users_checked", result.UsersChecked),
		logger.Int("users_repaired", result.UsersRepaired),
		logger.Int("failures", result.Failures),
		logger.Latency(result.Duration),
	)

	return result, nil
}
