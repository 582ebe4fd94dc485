package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "throttle:"

// Throttle is a fixed-window request counter backed by Redis.
// Key format: throttle:<scope>:<subject>
type Throttle struct {
	client redis.Cmdable
}

// NewThrottle creates a Throttle wrapping the given Redis client.
func NewThrottle(client redis.Cmdable) *Throttle {
	return &Throttle{client: client}
}

// Allow counts one hit against key and reports whether the count is still
// within limit for the current window. The window starts on the first hit.
//
// The counter is created with its expiry and incremented in one MULTI block,
// so a key never exists without a TTL. A counter left without one (written by
// an older release or by hand) gets the window re-applied on its next hit.
func (t *Throttle) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := keyPrefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, window)
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("throttle %s: %w", key, err)
	}

	if ttl.Val() < 0 {
		if err := t.client.PExpire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("throttle %s: expire: %w", key, err)
		}
	}

	return incr.Val() <= int64(limit), nil
}
