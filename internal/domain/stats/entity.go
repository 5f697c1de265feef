// Package stats contains the domain model for per-user aggregate
// statistics. The aggregate is a projection of the event log: the counter
// store owns the current value, but the event store remains authoritative
// and the aggregate must always be reconstructible from it.
package stats

import (
	"context"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

// Aggregate is the derived per-user state. Score is monotonically
// non-decreasing under normal scoring (all known event types earn points);
// it equals the sum of point contributions of every durably committed
// event for the user.
type Aggregate struct {
	UserID    event.UserID
	Score     int64
	UpdatedAt time.Time
}

// NewAggregate creates an aggregate snapshot.
func NewAggregate(userID event.UserID, score int64, updatedAt time.Time) Aggregate {
	return Aggregate{
		UserID:    userID,
		Score:     score,
		UpdatedAt: updatedAt,
	}
}

// Replay reconstructs the aggregate for a user by folding the committed
// event log. It is the authoritative recomputation that both self-healing
// reads and reconciliation rely on; a user with no events replays to an
// aggregate with score 0. The returned count is the number of events
// folded.
func Replay(ctx context.Context, events event.Repository, userID event.UserID, scoring event.ScoreFunc) (Aggregate, int64, error) {
	var score, count int64
	err := events.ForEachByUser(ctx, userID, func(e *event.Event) error {
		score += e.Score(scoring)
		count++
		return nil
	})
	if err != nil {
		return Aggregate{}, 0, err
	}
	return NewAggregate(userID, score, time.Now().UTC()), count, nil
}
