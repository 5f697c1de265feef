// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
	"github.com/arcadehub/arcade-events/internal/infrastructure/metrics"
	"github.com/arcadehub/arcade-events/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT EVENT COMMAND
// The write path of the system: validate, durably append to the event log,
// then hand the score delta to the aggregation pipeline. The append commits
// before any counter is touched, so the log is always ahead of the cache.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitEventCommand contains the data to record a user event.
type SubmitEventCommand struct {
	// UserID is the subject of the event.
	UserID int64

	// Type is the event type. Must belong to the known vocabulary.
	Type string

	// Details is the type-specific payload, stored verbatim.
	Details map[string]any

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitEventCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.NewDomainError("event", "Validate", shared.ErrInvalidID, "user id must be positive")
	}
	if c.Type == "" {
		return shared.NewDomainError("event", "Validate", shared.ErrEmptyValue, "event type is required")
	}
	if !event.Type(c.Type).IsValid() {
		return shared.WrapError("event", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("unknown event type: %s", c.Type), event.ErrUnknownEventType)
	}
	return nil
}

// SubmitEventResult contains the result of recording an event.
type SubmitEventResult struct {
	// EventID is the identifier assigned at persistence time.
	EventID string

	// UserID is the subject of the event.
	UserID int64

	// Type is the recorded event type.
	Type string

	// Delta is the score contribution computed for this event.
	Delta int64

	// Queued indicates whether the delta was handed to the aggregation
	// pipeline. When false the event is still durably recorded and the
	// counter catches up via reconciliation.
	Queued bool

	// CreatedAt is the durable commit timestamp.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitEventHandler handles the SubmitEventCommand.
type SubmitEventHandler struct {
	events   event.Repository
	enqueuer stats.Enqueuer
	scoring  event.ScoreFunc
	log      *logger.Logger
}

// NewSubmitEventHandler creates a new SubmitEventHandler. A nil scoring
// function selects the production scoring table.
func NewSubmitEventHandler(
	events event.Repository,
	enqueuer stats.Enqueuer,
	scoring event.ScoreFunc,
	log *logger.Logger,
) *SubmitEventHandler {
	if scoring == nil {
		scoring = event.DefaultScoring
	}
	if log == nil {
		log = logger.Default()
	}

	return &SubmitEventHandler{
		events:   events,
		enqueuer: enqueuer,
		scoring:  scoring,
		log:      log,
	}
}

// Handle executes the submit event command.
//
// Ordering is the contract here: the event is committed to the log first,
// and only then is the delta enqueued. A failure after the commit never
// rolls the event back; the response still reports success and the
// counter is healed by retry or reconciliation.
func (h *SubmitEventHandler) Handle(ctx context.Context, cmd SubmitEventCommand) (*SubmitEventResult, error) {
	start := time.Now()

	if err := cmd.Validate(); err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	e, err := event.New(event.UserID(cmd.UserID), event.Type(cmd.Type), event.Details(cmd.Details))
	if err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return nil, shared.WrapError("event", "Submit", shared.ErrValidation, "invalid event", err)
	}

	if err := h.events.Append(ctx, e); err != nil {
		metrics.EventsRejected.WithLabelValues("persistence").Inc()
		return nil, shared.WrapError("event", "Submit", shared.ErrPersistence, "failed to append event", err)
	}

	delta := e.Score(h.scoring)

	result := &SubmitEventResult{
		EventID:   e.ID.String(),
		UserID:    cmd.UserID,
		Type:      cmd.Type,
		Delta:     delta,
		CreatedAt: e.CreatedAt,
	}

	inc := stats.Increment{
		EventID:   e.ID,
		UserID:    e.UserID,
		EventType: e.Type,
		Delta:     delta,
	}

	if err := h.enqueuer.Enqueue(ctx, inc); err != nil {
		// The event is already durable. Losing the enqueue only delays
		// the counter until the next reconciliation sweep.
		h.log.Warn("failed to enqueue score delta, counter will lag until reconciliation",
			logger.EventID(result.EventID),
			logger.UserID(cmd.UserID),
			logger.Delta(delta),
			logger.Err(err),
		)
	} else {
		result.Queued = true
	}

	metrics.EventsIngested.WithLabelValues(cmd.Type).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	h.log.Debug("event recorded",
		logger.EventID(result.EventID),
		logger.UserID(cmd.UserID),
		logger.EventType(cmd.Type),
		logger.Delta(delta),
		logger.Latency(time.Since(start)),
	)

	return result, nil
}
