package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis is a Redis-backed cache adapter. Values are JSON-serialized so any
// result type the services cache round-trips unchanged. Backend failures are
// treated as misses on read and dropped on write: the cache is an
// accelerator, never a dependency the request path can fail on.
type Redis[T any] struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedis creates a Redis cache adapter.
func NewRedis[T any](addr string, db int, logger *zap.Logger) *Redis[T] {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	return &Redis[T]{client: client, logger: logger}
}

// NewRedisWithClient wraps an existing client (used by tests with miniredis).
func NewRedisWithClient[T any](client *redis.Client, logger *zap.Logger) *Redis[T] {
	return &Redis[T]{client: client, logger: logger}
}

// Ping verifies the backend is reachable; called from readiness checks.
func (c *Redis[T]) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get retrieves and decodes a value. Any backend or decode failure is a miss.
func (c *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis get failed, treating as miss",
				zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		c.logger.Warn("redis cache entry undecodable, treating as miss",
			zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return value, true
}

// Set encodes and stores a value with the given TTL. Failures are logged and
// swallowed; the next read recomputes.
func (c *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("redis cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes a key.
func (c *Redis[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("redis del failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the underlying client.
func (c *Redis[T]) Close() error {
	return c.client.Close()
}
