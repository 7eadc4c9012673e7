// Package cache provides the Redis-backed key/value cache that fronts
// the backing store. The cache is a pure accelerator: every failure
// degrades to a miss or a no-op and is logged, never raised, so a
// flushed or unreachable cache yields identical results, only slower.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roster-engine/internal/config"
)

// Cache wraps a Redis client with JSON values, advisory TTLs and
// glob-pattern invalidation.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a cache from configuration, verifying connectivity.
func New(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &Cache{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client. Used by tests running against
// miniredis.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get loads the value at key into dest and reports whether it was a hit.
// Any cache or decode failure is logged and counted as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("cache entry undecodable, evicting", "key", key, "error", err)
		c.Forget(ctx, key)
		return false
	}
	return true
}

// Set stores a value under key with the given TTL. A non-positive TTL
// stores without expiry.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache set skipped, value not serializable", "key", key, "error", err)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Forget evicts a single key.
func (c *Cache) Forget(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache forget failed", "key", key, "error", err)
	}
}

// ForgetPattern evicts every key matching the glob pattern (at minimum
// the trailing-wildcard "prefix*" form) and returns the eviction count.
func (c *Cache) ForgetPattern(ctx context.Context, pattern string) int {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			c.logger.Warn("cache pattern scan failed", "pattern", pattern, "error", err)
			return removed
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn("cache pattern delete failed", "pattern", pattern, "error", err)
			} else {
				removed += len(keys)
			}
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// Flush evicts every key. Used after a full rebuild.
func (c *Cache) Flush(ctx context.Context) {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		c.logger.Warn("cache flush failed", "error", err)
	}
}

// Remember returns the cached value at key, or runs produce exactly once
// on a miss, stores its result under key and returns it. Producer errors
// propagate; cache errors never do.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, produce func() (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}
	value, err := produce()
	if err != nil {
		return value, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}
