package stats

import (
	"context"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

// CounterStore is the narrow interface over the fast key-value store that
// holds the current score per user. Increment must be atomic with no
// read-modify-write race under arbitrary concurrent callers for the same
// key; this is the load-bearing correctness property of the whole
// aggregation pipeline, and it is provided by the store's native atomic
// increment primitive rather than by application-level locking.
//
// All operations may fail with an error matching
// shared.ErrCounterUnavailable when the store is unreachable. Callers must
// treat that as recoverable: the event store remains authoritative and the
// delta is re-applied by retry or reconciliation.
type CounterStore interface {
	// Increment atomically adds delta (which may be negative) to the
	// counter for userID, creating it at 0 if absent, and returns the
	// resulting value.
	Increment(ctx context.Context, userID event.UserID, delta int64) (int64, error)

	// Get returns the current counter value. The second result is false
	// when the counter is absent, which is distinct from a present value
	// of 0 (events recorded, net delta zero).
	Get(ctx context.Context, userID event.UserID) (int64, bool, error)

	// Set overwrites the counter. Only reconciliation and self-healing
	// use this; the hot path always goes through Increment.
	Set(ctx context.Context, userID event.UserID, value int64) error

	// MarkApplied records that the delta for eventID has been applied,
	// returning false if a marker already existed. The marker is what
	// turns at-least-once delivery of aggregation jobs into exactly-once
	// counter effect.
	MarkApplied(ctx context.Context, eventID event.ID) (bool, error)
}
