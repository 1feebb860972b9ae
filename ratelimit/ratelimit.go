// Package ratelimit counts API requests per (endpoint, user) in redis so
// every instance of a service draws from one shared budget. The counter is
// a fixed window: the first hit creates the key with the window TTL and
// the count rides until redis expires it. A dead redis fails open; rate
// limiting protects capacity and must never become an outage of its own.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coinpulse/coinpulse/cache"
)

// RedisLimiter is the shared fixed-window limiter.
type RedisLimiter struct {
	Client *redis.Client

	// Window is the counting window, normally the rate_limit entity TTL.
	Window time.Duration
}

func NewRedisLimiter(client *redis.Client, policy *cache.Policy) (*RedisLimiter, error) {
	if policy == nil {
		policy = cache.DefaultPolicy()
	}
	window, err := policy.TTLFor(cache.EntityRateLimit)
	if err != nil {
		return nil, err
	}
	return &RedisLimiter{Client: client, Window: window}, nil
}

// Allow counts one request and reports whether it stays within limit,
// along with the count consumed so far in the window. On a redis failure
// the request is allowed and the error returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, endpoint string, userID int64, limit int64) (bool, int64, error) {
	key, err := cache.BuildKey(cache.EntityRateLimit, cache.Params{"endpoint": endpoint, "user_id": userID})
	if err != nil {
		return false, 0, err
	}

	// count and arm the window TTL in a single redis round-trip; NX so
	// later hits never push the window out
	multi := l.Client.Pipeline()
	incr := multi.Incr(ctx, key)
	multi.ExpireNX(ctx, key, l.Window)
	if _, err := multi.Exec(ctx); err != nil {
		failOpen.Inc()
		return true, 0, fmt.Errorf("%w: rate limit count for %s: %v", cache.ErrUnavailable, key, err)
	}

	count := incr.Val()
	if count > limit {
		denied.WithLabelValues(endpoint).Inc()
		return false, count, nil
	}
	return true, count, nil
}
