package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
)

func TestSubmitEvent_RecordsAndEnqueues(t *testing.T) {
	repo := &fakeEventRepo{}
	queue := &fakeEnqueuer{}
	h := NewSubmitEventHandler(repo, queue, nil, nil)

	result, err := h.Handle(context.Background(), SubmitEventCommand{
		UserID: 42,
		Type:   "login",
	})

	assert.NoError(t, err)
	assert.Equal(t, "evt-1", result.EventID)
	assert.Equal(t, int64(5), result.Delta)
	assert.True(t, result.Queued)
	assert.False(t, result.CreatedAt.IsZero())

	incs := queue.all()
	assert.Len(t, incs, 1)
	assert.Equal(t, event.ID("evt-1"), incs[0].EventID)
	assert.Equal(t, event.UserID(42), incs[0].UserID)
	assert.Equal(t, int64(5), incs[0].Delta)
}

func TestSubmitEvent_CommitsBeforeEnqueue(t *testing.T) {
	repo := &fakeEventRepo{}
	queue := &fakeEnqueuer{}

	// At enqueue time the event must already be durable: the increment
	// carries the ID assigned at persistence.
	var persistedAtEnqueue bool
	queue.onEnqueue = func(inc stats.Increment) {
		count, _ := repo.CountByUser(context.Background(), inc.UserID)
		persistedAtEnqueue = count == 1 && inc.EventID.IsValid()
	}

	h := NewSubmitEventHandler(repo, queue, nil, nil)
	_, err := h.Handle(context.Background(), SubmitEventCommand{UserID: 7, Type: "find_secret"})

	assert.NoError(t, err)
	assert.True(t, persistedAtEnqueue)
}

func TestSubmitEvent_EnqueueFailureStillSucceeds(t *testing.T) {
	repo := &fakeEventRepo{}
	queue := &fakeEnqueuer{enqueueErr: errors.New("queue full")}
	h := NewSubmitEventHandler(repo, queue, nil, nil)

	result, err := h.Handle(context.Background(), SubmitEventCommand{UserID: 1, Type: "login"})

	// The event is durable, only the counter lags.
	assert.NoError(t, err)
	assert.False(t, result.Queued)
	count, _ := repo.CountByUser(context.Background(), 1)
	assert.Equal(t, int64(1), count)
}

func TestSubmitEvent_AppendFailureDropsEvent(t *testing.T) {
	repo := &fakeEventRepo{appendErr: errors.New("connection lost")}
	queue := &fakeEnqueuer{}
	h := NewSubmitEventHandler(repo, queue, nil, nil)

	_, err := h.Handle(context.Background(), SubmitEventCommand{UserID: 1, Type: "login"})

	assert.ErrorIs(t, err, shared.ErrPersistence)
	// Nothing was enqueued: no counter movement without a durable event.
	assert.Empty(t, queue.all())
}

func TestSubmitEvent_Validation(t *testing.T) {
	h := NewSubmitEventHandler(&fakeEventRepo{}, &fakeEnqueuer{}, nil, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, SubmitEventCommand{UserID: 0, Type: "login"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SubmitEventCommand{UserID: 1, Type: ""})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, SubmitEventCommand{UserID: 1, Type: "buy_skin"})
	assert.True(t, shared.IsValidation(err))
	assert.ErrorIs(t, err, event.ErrUnknownEventType)

	_, err = h.Handle(ctx, SubmitEventCommand{UserID: 1, Type: "complete_level"})
	assert.Error(t, err)
}

func TestSubmitEvent_CompleteLevelDelta(t *testing.T) {
	repo := &fakeEventRepo{}
	queue := &fakeEnqueuer{}
	h := NewSubmitEventHandler(repo, queue, nil, nil)

	result, err := h.Handle(context.Background(), SubmitEventCommand{
		UserID:  9,
		Type:    "complete_level",
		Details: map[string]any{"level": float64(3)}, // as decoded from JSON
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(23), result.Delta)
}
