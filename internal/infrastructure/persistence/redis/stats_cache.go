package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arcadehub/arcade-events/internal/domain/event"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS RESPONSE CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache caches assembled stats responses with a short TTL so the read
// path does not assemble events and achievements from PostgreSQL on every
// request. Cache failures are never fatal: callers fall through to the
// stores on any error.
type StatsCache struct {
	client *Client
	ttl    time.Duration
}

// NewStatsCache creates a StatsCache with the default TTL.
func NewStatsCache(client *Client) *StatsCache {
	return &StatsCache{client: client, ttl: TTLStatsCache}
}

// NewStatsCacheWithTTL creates a StatsCache with a custom TTL.
func NewStatsCacheWithTTL(client *Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = TTLStatsCache
	}
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(userID event.UserID) string {
	return fmt.Sprintf(keyStatsFmt, int64(userID))
}

// Get loads a cached stats response into dest.
// Returns ErrCacheMiss when nothing is cached.
func (c *StatsCache) Get(ctx context.Context, userID event.UserID, dest interface{}) error {
	data, err := c.client.rdb.Get(ctx, statsKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return nil
}

// Set caches a stats response with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, userID event.UserID, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	return c.client.rdb.Set(ctx, statsKey(userID), data, c.ttl).Err()
}

// Invalidate drops the cached response for a user. Called after every
// applied delta and every reconciliation so readers never see a response
// staler than the TTL plus the aggregation lag.
func (c *StatsCache) Invalidate(ctx context.Context, userID event.UserID) error {
	return c.client.rdb.Del(ctx, statsKey(userID)).Err()
}
