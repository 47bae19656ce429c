package ratelimit

import (
	"context"
	"fmt"
	"time"

	"chatflow/pkg/logger"

	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter is a fixed-window counter shared by every server instance
// pointed at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	log    logger.Logger
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "chatflow:ratelimit:",
		log:    log,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.log.Error("Failed to increment rate limit", "key", key, "error", err)
		return Result{}, fmt.Errorf("rate limit increment: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.log.Error("Failed to set rate limit window", "key", key, "error", err)
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
	}, nil
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
