package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateCounter backs the fixed-window rate limiter with Redis counters.
type RateCounter struct {
	rdb *redis.Client
}

// NewRateCounter creates a RateCounter.
func NewRateCounter(rdb *redis.Client) *RateCounter {
	return &RateCounter{rdb: rdb}
}

// Incr bumps the counter at key and sets its expiry in the same transaction.
func (r *RateCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
