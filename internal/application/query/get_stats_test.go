package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadehub/arcade-events/internal/domain/achievement"
	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeEventRepo struct {
	mu         sync.Mutex
	events     []*event.Event
	seq        int
	replays    int
	forEachErr error
}

func (r *fakeEventRepo) Append(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if err := e.Stamp(event.ID(fmt.Sprintf("evt-%d", r.seq)), time.Now().UTC()); err != nil {
		return err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *fakeEventRepo) ForEachByUser(ctx context.Context, userID event.UserID, fn func(*event.Event) error) error {
	r.mu.Lock()
	r.replays++
	snapshot := make([]*event.Event, len(r.events))
	copy(snapshot, r.events)
	err := r.forEachErr
	r.mu.Unlock()

	if err != nil {
		return err
	}

	for _, e := range snapshot {
		if e.UserID != userID {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeEventRepo) LastTypesByUser(ctx context.Context, userID event.UserID, limit int) ([]event.Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var types []event.Type
	for i := len(r.events) - 1; i >= 0 && len(types) < limit; i-- {
		if r.events[i].UserID == userID {
			types = append(types, r.events[i].Type)
		}
	}
	return types, nil
}

func (r *fakeEventRepo) CountByUser(ctx context.Context, userID event.UserID) (int64, error) {
	return 0, nil
}

func (r *fakeEventRepo) ActiveUserIDs(ctx context.Context, since time.Time) ([]event.UserID, error) {
	return nil, nil
}

type fakeCounter struct {
	mu     sync.Mutex
	scores map[event.UserID]int64
	getErr error

	setCalls int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{scores: make(map[event.UserID]int64)}
}

func (c *fakeCounter) Increment(ctx context.Context, userID event.UserID, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scores[userID] += delta
	return c.scores[userID], nil
}

func (c *fakeCounter) Get(ctx context.Context, userID event.UserID) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return 0, false, c.getErr
	}
	score, ok := c.scores[userID]
	return score, ok, nil
}

func (c *fakeCounter) Set(ctx context.Context, userID event.UserID, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
	c.scores[userID] = value
	return nil
}

func (c *fakeCounter) MarkApplied(ctx context.Context, eventID event.ID) (bool, error) {
	return true, nil
}

type fakeAchievements struct {
	names map[event.UserID][]achievement.Name
}

func (r *fakeAchievements) Unlock(ctx context.Context, a *achievement.Achievement) (bool, error) {
	return false, nil
}

func (r *fakeAchievements) NamesByUser(ctx context.Context, userID event.UserID) ([]achievement.Name, error) {
	return r.names[userID], nil
}

func (r *fakeAchievements) Has(ctx context.Context, userID event.UserID, name achievement.Name) (bool, error) {
	return false, nil
}

// fakeCache stores assembled DTOs by user.
type fakeCache struct {
	mu      sync.Mutex
	entries map[event.UserID]UserStatsDTO
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[event.UserID]UserStatsDTO)}
}

func (c *fakeCache) Get(ctx context.Context, userID event.UserID, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[userID]
	if !ok {
		return errors.New("cache miss")
	}
	out, ok := dest.(*UserStatsDTO)
	if !ok {
		return errors.New("unexpected destination type")
	}
	*out = cached
	return nil
}

func (c *fakeCache) Set(ctx context.Context, userID event.UserID, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dto, ok := value.(*UserStatsDTO)
	if !ok {
		return errors.New("unexpected value type")
	}
	c.entries[userID] = *dto
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, userID event.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

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

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetStats_AssemblesResponse(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	achievements := &fakeAchievements{names: map[event.UserID][]achievement.Name{
		7: {achievement.NameBeginner, achievement.NameResearcher},
	}}
	h := NewGetStatsHandler(repo, counter, achievements, nil, nil, false, nil)

	seedEvents(t, repo, 7, event.TypeLogin, event.TypeFindSecret)
	counter.scores[7] = 55

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.NoError(t, err)
	assert.Equal(t, int64(7), dto.UserID)
	assert.Equal(t, int64(55), dto.Score)
	assert.Equal(t, []string{"find_secret", "login"}, dto.LastEvents)
	assert.Equal(t, []string{"beginner", "researcher"}, dto.Achievements)
}

func TestGetStats_UnknownUserIsEmptyNotError(t *testing.T) {
	h := NewGetStatsHandler(&fakeEventRepo{}, newFakeCounter(), &fakeAchievements{}, nil, nil, false, nil)

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 404})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), dto.Score)
	assert.Empty(t, dto.LastEvents)
	assert.Empty(t, dto.Achievements)
}

func TestGetStats_CacheHitSkipsStores(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	cache := newFakeCache()
	cache.entries[7] = UserStatsDTO{UserID: 7, Score: 99, LastEvents: []string{"login"}, Achievements: []string{}}

	h := NewGetStatsHandler(repo, counter, &fakeAchievements{}, cache, nil, false, nil)

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.NoError(t, err)
	assert.Equal(t, int64(99), dto.Score)
	assert.Equal(t, 0, repo.replays)
}

func TestGetStats_MissPopulatesCache(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	cache := newFakeCache()
	h := NewGetStatsHandler(repo, counter, &fakeAchievements{}, cache, nil, false, nil)

	seedEvents(t, repo, 7, event.TypeLogin)
	counter.scores[7] = 5

	_, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, int64(5), cache.entries[7].Score)
}

func TestGetStats_AbsentCounterReplaysLog(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewGetStatsHandler(repo, counter, &fakeAchievements{}, nil, nil, false, nil)

	// Counter store lost its data; the log still has it.
	seedEvents(t, repo, 7, event.TypeLogin, event.TypeCompleteLevel)

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.NoError(t, err)
	assert.Equal(t, int64(26), dto.Score) // 5 + 21
	assert.Equal(t, 0, counter.setCalls)  // self-heal disabled
}

func TestGetStats_SelfHealRebuildsAbsentCounter(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewGetStatsHandler(repo, counter, &fakeAchievements{}, nil, nil, true, nil)

	seedEvents(t, repo, 7, event.TypeFindSecret)

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.NoError(t, err)
	assert.Equal(t, int64(50), dto.Score)
	assert.Equal(t, 1, counter.setCalls)
	assert.Equal(t, int64(50), counter.scores[7])
}

func TestGetStats_CounterOutageFallsBackWithoutHealing(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	counter.getErr = shared.WrapError("stats", "Get", shared.ErrCounterUnavailable, "connection refused", nil)
	h := NewGetStatsHandler(repo, counter, &fakeAchievements{}, nil, nil, true, nil)

	seedEvents(t, repo, 7, event.TypeLogin)

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	// The read degrades to a replay; writing back through an outage
	// would race with the store's recovery.
	assert.NoError(t, err)
	assert.Equal(t, int64(5), dto.Score)
	assert.Equal(t, 0, counter.setCalls)
}

func TestGetStats_ReplayFailureIsReconciliationError(t *testing.T) {
	// Counter absent and the replay itself fails: the read-path
	// recomputation error carries the reconciliation kind, not a plain
	// persistence failure.
	repo := &fakeEventRepo{forEachErr: errors.New("connection lost")}
	h := NewGetStatsHandler(repo, newFakeCounter(), &fakeAchievements{}, nil, nil, false, nil)

	_, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.ErrorIs(t, err, shared.ErrReconciliation)
}

func TestGetStats_NilAchievementsLeavesListEmpty(t *testing.T) {
	repo := &fakeEventRepo{}
	counter := newFakeCounter()
	h := NewGetStatsHandler(repo, counter, nil, nil, nil, false, nil)

	seedEvents(t, repo, 7, event.TypeLogin)
	counter.scores[7] = 5

	dto, err := h.Handle(context.Background(), GetStatsQuery{UserID: 7})

	assert.NoError(t, err)
	assert.Equal(t, int64(5), dto.Score)
	assert.Equal(t, []string{"login"}, dto.LastEvents)
	assert.Empty(t, dto.Achievements)
}

func TestGetStats_Validate(t *testing.T) {
	h := NewGetStatsHandler(&fakeEventRepo{}, newFakeCounter(), &fakeAchievements{}, nil, nil, false, nil)
	_, err := h.Handle(context.Background(), GetStatsQuery{UserID: -1})
	assert.True(t, shared.IsValidation(err))
}
