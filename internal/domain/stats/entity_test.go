package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

type replayRepo struct {
	events []*event.Event
	err    error
}

func (r *replayRepo) Append(ctx context.Context, e *event.Event) error { return nil }

func (r *replayRepo) ForEachByUser(ctx context.Context, userID event.UserID, fn func(*event.Event) error) error {
	if r.err != nil {
		return r.err
	}
	for _, e := range r.events {
		if e.UserID != userID {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *replayRepo) LastTypesByUser(ctx context.Context, userID event.UserID, limit int) ([]event.Type, error) {
	return nil, nil
}

func (r *replayRepo) CountByUser(ctx context.Context, userID event.UserID) (int64, error) {
	return 0, nil
}

func (r *replayRepo) ActiveUserIDs(ctx context.Context, since time.Time) ([]event.UserID, error) {
	return nil, nil
}

func mustEvent(t *testing.T, userID int64, eventType string, details map[string]any) *event.Event {
	t.Helper()
	e, err := event.New(event.UserID(userID), event.Type(eventType), details)
	require.NoError(t, err)
	return e
}

func TestReplay_FoldsEventLog(t *testing.T) {
	repo := &replayRepo{events: []*event.Event{
		mustEvent(t, 7, "login", nil),
		mustEvent(t, 7, "find_secret", nil),
		mustEvent(t, 7, "complete_level", map[string]any{"level": float64(4)}),
		mustEvent(t, 8, "login", nil),
	}}

	agg, count, err := Replay(context.Background(), repo, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, event.UserID(7), agg.UserID)
	assert.Equal(t, int64(79), agg.Score)
	assert.Equal(t, int64(3), count)
	assert.False(t, agg.UpdatedAt.IsZero())
}

func TestReplay_UnknownUserIsZero(t *testing.T) {
	agg, count, err := Replay(context.Background(), &replayRepo{}, 99, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), agg.Score)
	assert.Equal(t, int64(0), count)
}

func TestReplay_PropagatesRepositoryError(t *testing.T) {
	repoErr := errors.New("connection lost")
	_, _, err := Replay(context.Background(), &replayRepo{err: repoErr}, 7, nil)
	assert.ErrorIs(t, err, repoErr)
}

func TestReplay_CustomScoring(t *testing.T) {
	repo := &replayRepo{events: []*event.Event{mustEvent(t, 7, "login", nil)}}
	double := func(tp event.Type, d event.Details) int64 { return 2 * event.DefaultScoring(tp, d) }

	agg, _, err := Replay(context.Background(), repo, 7, double)
	require.NoError(t, err)
	assert.Equal(t, int64(10), agg.Score)
}
