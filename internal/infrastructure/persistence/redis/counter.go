package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE COUNTER
// ══════════════════════════════════════════════════════════════════════════════

// ScoreCounter implements stats.CounterStore on Redis.
//
// Atomicity comes from INCRBY itself: Redis executes each command
// atomically, so concurrent increments for the same user can never lose an
// update and no application-level lock is needed. Every connectivity
// failure is wrapped as shared.ErrCounterUnavailable so callers can route
// it to retry rather than surfacing it.
type ScoreCounter struct {
	client *Client
}

// NewScoreCounter creates a new ScoreCounter.
func NewScoreCounter(client *Client) *ScoreCounter {
	return &ScoreCounter{client: client}
}

func scoreKey(userID event.UserID) string {
	return fmt.Sprintf(keyScoresFmt, int64(userID))
}

func appliedKey(eventID event.ID) string {
	return fmt.Sprintf(keyAppliedFmt, eventID.String())
}

// Increment atomically adds delta to the user's counter, creating it at 0
// if absent, and returns the resulting value.
func (s *ScoreCounter) Increment(ctx context.Context, userID event.UserID, delta int64) (int64, error) {
	val, err := s.client.rdb.IncrBy(ctx, scoreKey(userID), delta).Result()
	if err != nil {
		return 0, shared.WrapError("stats", "Increment", shared.ErrCounterUnavailable, "incrby failed", err)
	}
	return val, nil
}

// Get returns the current counter value. A missing key is reported as
// absent, which is distinct from a stored 0.
func (s *ScoreCounter) Get(ctx context.Context, userID event.UserID) (int64, bool, error) {
	raw, err := s.client.rdb.Get(ctx, scoreKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, shared.WrapError("stats", "Get", shared.ErrCounterUnavailable, "get failed", err)
	}

	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, shared.WrapError("stats", "Get", shared.ErrCounterUnavailable, "counter holds non-numeric value", err)
	}

	return val, true, nil
}

// Set overwrites the counter. Reconciliation only.
func (s *ScoreCounter) Set(ctx context.Context, userID event.UserID, value int64) error {
	if err := s.client.rdb.Set(ctx, scoreKey(userID), value, 0).Err(); err != nil {
		return shared.WrapError("stats", "Set", shared.ErrCounterUnavailable, "set failed", err)
	}
	return nil
}

// MarkApplied sets the processed marker for an event via SETNX. The first
// caller gets true and proceeds to increment; any replay of the same event
// gets false and must skip the increment. A crash between the marker and
// the increment under-counts until reconciliation replays the log, which
// keeps the event store ahead of the cache, never behind it.
func (s *ScoreCounter) MarkApplied(ctx context.Context, eventID event.ID) (bool, error) {
	ok, err := s.client.rdb.SetNX(ctx, appliedKey(eventID), "1", TTLAppliedMarker).Result()
	if err != nil {
		return false, shared.WrapError("stats", "MarkApplied", shared.ErrCounterUnavailable, "setnx failed", err)
	}
	return ok, nil
}
