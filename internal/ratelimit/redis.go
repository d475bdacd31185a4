package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter shares windows across API replicas. It sticks to INCR, PTTL
// and PEXPIRE so any Redis release will do.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining, arm := windowRemaining(ttl.Val(), window)
	if arm {
		if err := c.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
	}
	return incr.Val(), remaining, nil
}

// windowRemaining reports the time left in a window, and whether the key has
// no expiry yet and must be given one. PTTL is negative for such keys.
func windowRemaining(ttl, window time.Duration) (time.Duration, bool) {
	if ttl < 0 {
		return window, true
	}
	return ttl, false
}
