// Package cache provides the hybrid Redis/in-memory cache used by the
// permission resolver and the hot read endpoints. Redis is the primary
// store; every write is mirrored into a process-local map so reads keep
// working (degraded, per-process) when Redis is unreachable.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TTL tiers. Callers pick a tier instead of inventing ad-hoc durations so
// invalidation behavior stays predictable across endpoints.
const (
	TTLShort  = time.Minute
	TTLMedium = 5 * time.Minute
	TTLLong   = 30 * time.Minute
	TTLDay    = 24 * time.Hour
)

// staleRetention is how long an expired in-memory entry is kept around as a
// last-resort fallback for failed loaders before the sweeper drops it.
const staleRetention = TTLDay

var ErrMiss = errors.New("cache miss")

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type Cache struct {
	client *redis.Client

	mu     sync.RWMutex
	memory map[string]memoryEntry

	flight singleflight.Group

	now func() time.Time
}

// New connects to Redis and returns a hybrid cache. The connection is
// verified once at startup; runtime outages degrade to the memory mirror
// instead of failing requests.
func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing Redis client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		memory: make(map[string]memoryEntry),
		now:    time.Now,
	}
}

// Get returns the fresh value for key, preferring Redis. Expired memory
// entries are not returned here; they only feed the stale fallback in
// GetOrSet.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Redis down: fall through to the memory mirror.
		if value, ok := c.memoryGet(key, false); ok {
			return value, nil
		}
	}
	return nil, ErrMiss
}

// Set writes the value to Redis and the memory mirror. A Redis failure is
// not an error for the caller; the mirror still holds the value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLShort
	}
	c.memorySet(key, value, ttl)
	// The mirror already holds the value; a failed Redis write degrades
	// to per-process caching.
	_ = c.client.Set(ctx, key, value, ttl).Err()
	return nil
}

// Delete removes exact keys from both layers.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	c.mu.Lock()
	for _, key := range keys {
		delete(c.memory, key)
	}
	c.mu.Unlock()
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// DeletePattern removes every key matching a Redis-style glob pattern
// (e.g. "perm:user:123:*") from both layers. Redis keys are discovered
// with SCAN so large keyspaces do not block the server.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	for key := range c.memory {
		if matchPattern(pattern, key) {
			delete(c.memory, key)
		}
	}
	c.mu.Unlock()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			// Redis down: the memory side is already invalidated and Redis
			// entries expire by TTL, so degrade silently.
			return nil
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return nil
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetOrSet implements the get-or-set/force-refresh protocol. Unless force
// is set, a fresh cached value short-circuits the loader. On a miss the
// loader runs and its result is written back with the given TTL; concurrent
// misses on the same key share one loader call. If the loader fails and a
// stale in-memory value survives, the stale value is served instead of the
// error.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, force bool, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if !force {
		if value, err := c.Get(ctx, key); err == nil {
			return value, nil
		}
	}

	result, err, _ := c.flight.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			if stale, ok := c.memoryGet(key, true); ok {
				return stale, nil
			}
			return nil, err
		}
		_ = c.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Sweep drops expired memory entries that are past stale retention. The
// server runs this on a ticker; it is safe to call concurrently.
func (c *Cache) Sweep() {
	cutoff := c.now().Add(-staleRetention)
	c.mu.Lock()
	for key, entry := range c.memory {
		if entry.expiresAt.Before(cutoff) {
			delete(c.memory, key)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) memoryGet(key string, allowStale bool) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.memory[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !allowStale && c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (c *Cache) memorySet(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.memory[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// matchPattern applies a Redis-style glob to a key. Cache keys never
// contain '/', so path.Match semantics line up with Redis MATCH for the
// subset of patterns the invalidators use.
func matchPattern(pattern, key string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == key
	}
	matched, err := path.Match(pattern, key)
	return err == nil && matched
}
