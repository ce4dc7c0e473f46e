package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/toolforge/backend/internal/infrastructure/config"
)

// NewRedisClient creates a Redis client from configuration and verifies
// the connection before returning it.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisLimiter is a fixed-window request limiter shared across instances.
// It sits in front of the quota gate to absorb bursts; the per-day quota
// itself lives in the usage ledger, not here.
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisLimiter creates a limiter allowing limit requests per window per key
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:    client,
		keyPrefix: "ratelimit:",
		limit:     limit,
		window:    window,
	}
}

// Allow counts one request against the key's current window and reports
// whether it is within the limit. The INCR and the expiry are pipelined;
// ExpireNX only arms the window once, on the first request in it.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.keyPrefix + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count request: %w", err)
	}

	return incr.Val() <= int64(l.limit), nil
}

// Limit returns the configured per-window request limit
func (l *RedisLimiter) Limit() int {
	return l.limit
}

// Remaining returns how many requests are left in the key's current window
func (l *RedisLimiter) Remaining(ctx context.Context, key string) (int, error) {
	used, err := l.client.Get(ctx, l.keyPrefix+key).Int()
	if err == redis.Nil {
		return l.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read request count: %w", err)
	}

	remaining := l.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
