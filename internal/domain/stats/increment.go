package stats

import (
	"context"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

// Increment is one pending score delta derived from a committed event.
// It carries everything the aggregation side needs so the worker never has
// to read the event back from the log on the happy path.
type Increment struct {
	// EventID identifies the source event. It doubles as the idempotency
	// key: an increment is applied to the counter at most once per event
	// regardless of how many times it is delivered.
	EventID event.ID

	// UserID is the counter the delta applies to.
	UserID event.UserID

	// EventType is carried for achievement unlocking and logging.
	EventType event.Type

	// Delta is the point contribution, precomputed by the scoring
	// function at ingest time.
	Delta int64

	// Attempt counts deliveries of this increment, starting at 0.
	Attempt int
}

// Enqueuer hands an increment to the asynchronous aggregation pipeline.
// Delivery is at-least-once: the pipeline may invoke the applier several
// times for the same increment, and may drop it entirely on crash, in
// which case reconciliation recovers the delta from the event log.
type Enqueuer interface {
	Enqueue(ctx context.Context, inc Increment) error
}

// Applier applies a single increment to the counter store exactly once.
type Applier interface {
	Apply(ctx context.Context, inc Increment) error
}

// Cache is the short-TTL cache of assembled stats responses sitting in
// front of the stores. Implementations must make Get report a miss via an
// error; callers treat every Get error as a miss and fall through.
type Cache interface {
	Get(ctx context.Context, userID event.UserID, dest any) error
	Set(ctx context.Context, userID event.UserID, value any) error
	Invalidate(ctx context.Context, userID event.UserID) error
}
