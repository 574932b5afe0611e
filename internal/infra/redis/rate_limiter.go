package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter caps job submissions per org within a window. A "research all
// leads" click fans out into many submissions; the admission queue bounds
// concurrency, this bounds arrival rate.
type RateLimiter struct {
	client RedisClient
	limit  int
	window time.Duration
}

func NewRateLimiter(client RedisClient, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func (r *RateLimiter) Allow(ctx context.Context, orgID string) (bool, error) {
	key := submitKey(orgID)
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			return false, err
		}
	}
	return count <= int64(r.limit), nil
}

func submitKey(orgID string) string {
	return fmt.Sprintf("rate_limit:submit:%s", orgID)
}
