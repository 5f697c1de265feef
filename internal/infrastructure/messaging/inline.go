package messaging

import (
	"context"

	"github.com/arcadehub/arcade-events/internal/domain/stats"
)

// InlineEnqueuer applies increments synchronously on the caller's
// goroutine instead of buffering them. Selected when async aggregation is
// disabled; the ingest path still treats an apply failure as deferred
// aggregation, so the contract matches the queue minus the buffering.
// Implements stats.Enqueuer.
type InlineEnqueuer struct {
	applier stats.Applier
}

// NewInlineEnqueuer creates an InlineEnqueuer over the given applier.
func NewInlineEnqueuer(applier stats.Applier) *InlineEnqueuer {
	return &InlineEnqueuer{applier: applier}
}

// Enqueue applies the increment immediately.
func (e *InlineEnqueuer) Enqueue(ctx context.Context, inc stats.Increment) error {
	return e.applier.Apply(ctx, inc)
}
