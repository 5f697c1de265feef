package event

import (
	"context"
	"time"
)

// Repository defines the interface for durable event persistence.
// This interface is implemented by the infrastructure layer; the domain
// layer has no knowledge of the actual storage mechanism.
//
// The event log is append-only: there is no update or delete operation by
// design. Every derived statistic must be reconstructible from Replay.
type Repository interface {
	// Append durably persists an unpersisted event inside its own
	// transaction and stamps it with its assigned ID and timestamp.
	// Either the event is fully committed or not present at all.
	Append(ctx context.Context, e *Event) error

	// ForEachByUser replays all committed events for a user in insertion
	// order, invoking fn for each. Iteration stops at the first error
	// returned by fn. The replay is restartable: repeated calls over the
	// same committed state yield the same sequence.
	ForEachByUser(ctx context.Context, userID UserID, fn func(*Event) error) error

	// LastTypesByUser returns the types of the most recent events for a
	// user, newest first, limited to limit entries.
	LastTypesByUser(ctx context.Context, userID UserID, limit int) ([]Type, error)

	// CountByUser returns the number of committed events for a user.
	CountByUser(ctx context.Context, userID UserID) (int64, error)

	// ActiveUserIDs returns the IDs of users with at least one event
	// committed since the given cutoff. Used by the reconciliation worker
	// to bound its periodic sweep.
	ActiveUserIDs(ctx context.Context, since time.Time) ([]UserID, error)
}
