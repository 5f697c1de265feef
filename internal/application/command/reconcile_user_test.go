package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

func seedEvents(t *testing.T, repo *fakeEventRepo, userID event.UserID, types ...event.Type) {
	t.Helper()
	for _, typ := range types {
		details := event.Details{}
		if typ == event.TypeCompleteLevel {
			details["level"] = 1
		}
		e, err := event.New(userID, typ, details)
		require.NoError(t, err)
		require.NoError(t, repo.Append(context.Background(), e))
	}
}

func TestReconcileUser_RepairsDrift(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewReconcileUserHandler(repo, counter, nil, nil, nil)

	// login(5) + find_secret(50) + complete_level lvl1 (21) = 76
	seedEvents(t, repo, 3, event.TypeLogin, event.TypeFindSecret, event.TypeCompleteLevel)
	counter.scores[3] = 55 // lost an increment somewhere

	result, err := h.Handle(context.Background(), ReconcileUserCommand{UserID: 3})

	assert.NoError(t, err)
	assert.Equal(t, int64(76), result.Expected)
	assert.Equal(t, int64(55), result.Previous)
	assert.Equal(t, int64(21), result.Drift)
	assert.True(t, result.Repaired)
	assert.Equal(t, int64(3), result.EventCount)
	assert.Equal(t, int64(76), counter.score(3))
}

func TestReconcileUser_CleanCounterStaysPut(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewReconcileUserHandler(repo, counter, nil, nil, nil)

	seedEvents(t, repo, 3, event.TypeLogin)
	counter.scores[3] = 5

	result, err := h.Handle(context.Background(), ReconcileUserCommand{UserID: 3})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.Drift)
	assert.True(t, result.Repaired)
	assert.Equal(t, int64(5), counter.score(3))
}

func TestReconcileUser_DryRunLeavesCounter(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewReconcileUserHandler(repo, counter, nil, nil, nil)

	seedEvents(t, repo, 3, event.TypeLogin, event.TypeLogin)
	counter.scores[3] = 2

	result, err := h.Handle(context.Background(), ReconcileUserCommand{UserID: 3, DryRun: true})

	assert.NoError(t, err)
	assert.Equal(t, int64(10), result.Expected)
	assert.Equal(t, int64(8), result.Drift)
	assert.False(t, result.Repaired)
	assert.Equal(t, int64(2), counter.score(3))
	assert.Equal(t, 0, counter.setCalls)
}

func TestReconcileUser_UnknownUserReconcilesToZero(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewReconcileUserHandler(repo, counter, nil, nil, nil)

	result, err := h.Handle(context.Background(), ReconcileUserCommand{UserID: 99})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.Expected)
	assert.Equal(t, int64(0), result.EventCount)
	assert.Equal(t, int64(0), counter.score(99))
}

func TestReconcileUser_InvalidatesStatsCache(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	cache := &fakeCache{}
	h := NewReconcileUserHandler(repo, counter, cache, nil, nil)

	seedEvents(t, repo, 3, event.TypeLogin)
	_, err := h.Handle(context.Background(), ReconcileUserCommand{UserID: 3})

	assert.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated())
}

func TestReconcileUser_Validate(t *testing.T) {
	h := NewReconcileUserHandler(&fakeEventRepo{}, newFakeCounter(), nil, nil, nil)
	_, err := h.Handle(context.Background(), ReconcileUserCommand{UserID: 0})
	assert.Error(t, err)
}

func TestReconcileActive_SweepsRecentUsers(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	perUser := NewReconcileUserHandler(repo, counter, nil, nil, nil)
	h := NewReconcileActiveHandler(repo, perUser, nil)

	seedEvents(t, repo, 1, event.TypeLogin)      // expected 5
	seedEvents(t, repo, 2, event.TypeFindSecret) // expected 50
	counter.scores[1] = 5                        // clean
	counter.scores[2] = 20                       // drifted by 30

	result, err := h.Handle(context.Background(), ReconcileActiveCommand{
		Since: time.Now().Add(-time.Hour),
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, result.UsersChecked)
	assert.Equal(t, 1, result.UsersRepaired)
	assert.Equal(t, int64(30), result.TotalDrift)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, int64(50), counter.score(2))
}

func TestReconcileActive_WindowBoundsSweep(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	perUser := NewReconcileUserHandler(repo, counter, nil, nil, nil)
	h := NewReconcileActiveHandler(repo, perUser, nil)

	seedEvents(t, repo, 1, event.TypeLogin)

	// A cutoff in the future excludes everything.
	result, err := h.Handle(context.Background(), ReconcileActiveCommand{
		Since: time.Now().Add(time.Hour),
	})

	assert.NoError(t, err)
	assert.Equal(t, 0, result.UsersChecked)
}
