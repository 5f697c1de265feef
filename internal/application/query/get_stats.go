// Package query contains read operations following CQRS pattern.
// Queries never modify state beyond self-healing the derived counter -
// the event log itself is never written here.
package query

import (
	"context"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/achievement"
	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Assembles the per-user stats response: current score, the most recent
// event types and unlocked achievements. Served from a short-TTL cache
// when possible; an absent counter is rebuilt from the event log on the
// spot so counter store data loss degrades to a slow read, never a wrong
// answer.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLastEvents is how many recent event types the response carries.
const DefaultLastEvents = 5

// GetStatsQuery contains the parameters for a stats request.
type GetStatsQuery struct {
	// UserID is the user whose stats are requested.
	UserID int64
}

// Validate validates the query.
func (q GetStatsQuery) Validate() error {
	if q.UserID <= 0 {
		return shared.NewDomainError("stats", "Validate", shared.ErrInvalidID, "user id must be positive")
	}
	return nil
}

// UserStatsDTO is the assembled stats response.
type UserStatsDTO struct {
	// UserID is the subject of the stats.
	UserID int64 `json:"user_id"`

	// Score is the current aggregate score.
	Score int64 `json:"score"`

	// LastEvents holds the types of the most recent events, newest first.
	LastEvents []string `json:"last_events"`

	// Achievements holds the unlocked achievement names, oldest first.
	Achievements []string `json:"achievements"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStatsHandler handles the GetStatsQuery.
type GetStatsHandler struct {
	events       event.Repository
	counter      stats.CounterStore
	achievements achievement.Repository
	cache        stats.Cache
	scoring      event.ScoreFunc
	selfHeal     bool
	log          *logger.Logger
}

// NewGetStatsHandler creates a new GetStatsHandler. When selfHeal is set,
// an absent counter is rebuilt from the event log and written back. A nil
// achievements repository or cache disables that part of the response.
func NewGetStatsHandler(
	events event.Repository,
	counter stats.CounterStore,
	achievements achievement.Repository,
	cache stats.Cache,
	scoring event.ScoreFunc,
	selfHeal bool,
	log *logger.Logger,
) *GetStatsHandler {
	if scoring == nil {
		scoring = event.DefaultScoring
	}
	if log == nil {
		log = logger.Default()
	}

	return &GetStatsHandler{
		events:       events,
		counter:      counter,
		achievements: achievements,
		cache:        cache,
		scoring:      scoring,
		selfHeal:     selfHeal,
		log:          log,
	}
}

// Handle executes the get stats query. A user with no events gets an
// empty response with score 0, not an error.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*UserStatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	userID := event.UserID(q.UserID)

	// Any cache error is treated as a miss.
	if h.cache != nil {
		var cached UserStatsDTO
		if err := h.cache.Get(ctx, userID, &cached); err == nil {
			metrics.StatsCacheHits.Inc()
			return &cached, nil
		}
	}
	metrics.StatsCacheMisses.Inc()

	score, err := h.currentScore(ctx, userID)
	if err != nil {
		return nil, err
	}

	lastTypes, err := h.events.LastTypesByUser(ctx, userID, DefaultLastEvents)
	if err != nil {
		return nil, shared.WrapError("stats", "GetStats", shared.ErrPersistence, "failed to load recent events", err)
	}

	// Achievements are optional: a nil repository (feature disabled) just
	// leaves the list empty.
	var names []achievement.Name
	if h.achievements != nil {
		names, err = h.achievements.NamesByUser(ctx, userID)
		if err != nil {
			return nil, shared.WrapError("stats", "GetStats", shared.ErrPersistence, "failed to load achievements", err)
		}
	}

	dto := &UserStatsDTO{
		UserID:       q.UserID,
		Score:        score,
		LastEvents:   make([]string, 0, len(lastTypes)),
		Achievements: make([]string, 0, len(names)),
	}
	for _, t := range lastTypes {
		dto.LastEvents = append(dto.LastEvents, t.String())
	}
	for _, n := range names {
		dto.Achievements = append(dto.Achievements, n.String())
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, userID, dto); err != nil {
			h.log.Debug("failed to cache stats response",
				logger.UserID(q.UserID),
				logger.Err(err),
			)
		}
	}

	return dto, nil
}

// currentScore reads the counter, falling back to a replay of the event
// log when the counter is absent.
func (h *GetStatsHandler) currentScore(ctx context.Context, userID event.UserID) (int64, error) {
	score, present, err := h.counter.Get(ctx, userID)
	if err == nil && present {
		return score, nil
	}
	if err != nil {
		// Counter store down: the log still has the answer, just slower.
		h.log.Warn("counter store unavailable, replaying event log",
			logger.UserID(int64(userID)),
			logger.Err(err),
		)
	}

	start := time.Now()
	agg, _, replayErr := stats.Replay(ctx, h.events, userID, h.scoring)
	if replayErr != nil {
		return 0, shared.WrapError("stats", "GetStats", shared.ErrReconciliation, "event replay failed", replayErr)
	}
	replayed := agg.Score

	metrics.CounterRebuilds.Inc()
	h.log.Info("score rebuilt from event log",
		logger.UserID(int64(userID)),
		logger.Score(replayed),
		logger.Latency(time.Since(start)),
	)

	// Write the rebuilt value back only when the store answered; writing
	// through an outage would race with its recovery.
	if h.selfHeal && err == nil {
		if setErr := h.counter.Set(ctx, userID, replayed); setErr != nil {
			h.log.Warn("failed to self-heal counter",
				logger.UserID(int64(userID)),
				logger.Err(setErr),
			)
		}
	}

	return replayed, nil
}
