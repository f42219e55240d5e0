// Package ratelimit enforces a per-client sliding window over redis. Window
// state is a sorted set of attempt timestamps trimmed and counted in one
// pipeline, so concurrent requests from one client never lose updates.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultMax    = 6
	DefaultWindow = 60 * time.Second

	keyPrefix = "ratelimit:"
)

type Limiter struct {
	client *redis.Client
	max    int
	window time.Duration
	now    func() time.Time
}

// New builds a limiter allowing max requests per window per identifier.
// Zero values select the defaults (6 per 60s).
func New(client *redis.Client, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{client: client, max: max, window: window, now: time.Now}
}

func (l *Limiter) Max() int { return l.max }

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow records an attempt for id and reports whether it fits the window.
// Rejected attempts still occupy a slot; the window state is created lazily
// and expires with the window itself.
func (l *Limiter) Allow(ctx context.Context, id string) (Decision, error) {
	key := keyPrefix + id
	now := l.now()
	windowStart := now.Add(-l.window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: uuid.NewString(),
	})
	countCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit window %q: %w", id, err)
	}

	count := int(countCmd.Val())
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(l.window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(l.window)
	}

	return Decision{
		Allowed:   count <= l.max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
