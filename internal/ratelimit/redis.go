package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "homelab:ratelimit:"

// RedisLimiter keeps counters in Redis so several instances share them.
// Each window is one key, incremented and given a TTL in a single
// MULTI/EXEC round trip.
type RedisLimiter struct {
	client goredis.Cmdable
	window time.Duration
	limit  int
	prefix string
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per key per window.
func NewRedisLimiter(client goredis.Cmdable, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		window: window,
		limit:  limit,
		prefix: defaultKeyPrefix,
		now:    time.Now,
	}
}

// Allow counts a request for key. Redis errors are wrapped in ErrUnavailable.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	start := l.now().Truncate(l.window)
	resetAt := start.Add(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(start.Unix(), 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireAt(ctx, redisKey, resetAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return decide(incr.Val(), l.limit, resetAt), nil
}
