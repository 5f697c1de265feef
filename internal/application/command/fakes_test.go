package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arcadehub/arcade-events/internal/domain/achievement"
	"github.com/arcadehub/arcade-events/internal/domain/event"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

// fakeEventRepo is an in-memory event.Repository keeping insertion order.
type fakeEventRepo struct {
	mu        sync.Mutex
	events    []*event.Event
	seq       int
	appendErr error
}

func (r *fakeEventRepo) Append(ctx context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.appendErr != nil {
		return r.appendErr
	}
	r.seq++
	if err := e.Stamp(event.ID(fmt.Sprintf("evt-%d", r.seq)), time.Now().UTC()); err != nil {
		return err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *fakeEventRepo) ForEachByUser(ctx context.Context, userID event.UserID, fn func(*event.Event) error) error {
	r.mu.Lock()
	snapshot := make([]*event.Event, len(r.events))
	copy(snapshot, r.events)
	r.mu.Unlock()

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
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.events {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeEventRepo) ActiveUserIDs(ctx context.Context, since time.Time) ([]event.UserID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[event.UserID]bool)
	var ids []event.UserID
	for _, e := range r.events {
		if e.CreatedAt.Before(since) || seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

// fakeEnqueuer records enqueued increments.
type fakeEnqueuer struct {
	mu         sync.Mutex
	increments []stats.Increment
	enqueueErr error

	// onEnqueue runs inside Enqueue, before recording. Lets tests
	// observe state at enqueue time.
	onEnqueue func(inc stats.Increment)
}

func (q *fakeEnqueuer) Enqueue(ctx context.Context, inc stats.Increment) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.onEnqueue != nil {
		q.onEnqueue(inc)
	}
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.increments = append(q.increments, inc)
	return nil
}

func (q *fakeEnqueuer) all() []stats.Increment {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]stats.Increment, len(q.increments))
	copy(out, q.increments)
	return out
}

// fakeCounter is an in-memory stats.CounterStore.
type fakeCounter struct {
	mu      sync.Mutex
	scores  map[event.UserID]int64
	applied map[event.ID]bool

	incrementErr error
	markErr      error
	getErr       error
	setErr       error

	setCalls int
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		scores:  make(map[event.UserID]int64),
		applied: make(map[event.ID]bool),
	}
}

func (c *fakeCounter) Increment(ctx context.Context, userID event.UserID, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incrementErr != nil {
		return 0, c.incrementErr
	}
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

	if c.setErr != nil {
		return c.setErr
	}
	c.setCalls++
	c.scores[userID] = value
	return nil
}

func (c *fakeCounter) MarkApplied(ctx context.Context, eventID event.ID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.markErr != nil {
		return false, c.markErr
	}
	if c.applied[eventID] {
		return false, nil
	}
	c.applied[eventID] = true
	return true, nil
}

func (c *fakeCounter) score(userID event.UserID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scores[userID]
}

// fakeCache is an in-memory stats.Cache counting invalidations.
type fakeCache struct {
	mu            sync.Mutex
	invalidations int
	invalidateErr error
}

func (c *fakeCache) Get(ctx context.Context, userID event.UserID, dest any) error {
	return shared.ErrNotFound
}

func (c *fakeCache) Set(ctx context.Context, userID event.UserID, value any) error {
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, userID event.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	c.invalidations++
	return nil
}

func (c *fakeCache) invalidated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

// fakeAchievements is an in-memory achievement.Repository.
type fakeAchievements struct {
	mu       sync.Mutex
	unlocked map[event.UserID]map[achievement.Name]bool

	unlockErr error
}

func newFakeAchievements() *fakeAchievements {
	return &fakeAchievements{unlocked: make(map[event.UserID]map[achievement.Name]bool)}
}

func (r *fakeAchievements) Unlock(ctx context.Context, a *achievement.Achievement) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unlockErr != nil {
		return false, r.unlockErr
	}
	if r.unlocked[a.UserID] == nil {
		r.unlocked[a.UserID] = make(map[achievement.Name]bool)
	}
	if r.unlocked[a.UserID][a.Name] {
		return false, nil
	}
	r.unlocked[a.UserID][a.Name] = true
	return true, nil
}

func (r *fakeAchievements) NamesByUser(ctx context.Context, userID event.UserID) ([]achievement.Name, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []achievement.Name
	for name := range r.unlocked[userID] {
		names = append(names, name)
	}
	return names, nil
}

func (r *fakeAchievements) Has(ctx context.Context, userID event.UserID, name achievement.Name) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unlocked[userID][name], nil
}

// counterDown builds the error the Redis layer returns when unreachable.
func counterDown(op string) error {
	return shared.WrapError("stats", op, shared.ErrCounterUnavailable, "connection refused", nil)
}
