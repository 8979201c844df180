package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config describes one sliding-window budget. Name separates budgets that
// share a redis instance; identifiers are counted per name.
type Config struct {
	Name   string
	Window time.Duration
	Max    int
}

// Limiter is a redis-backed sliding-window rate limiter. Every call records a
// timestamped member in a per-identifier sorted set and counts the members
// still inside the window.
type Limiter struct {
	rdb *redis.Client
	cfg Config
}

func NewLimiter(rdb *redis.Client, cfg Config) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg}
}

// Allow records one hit for the identifier and reports whether it is still
// within budget. The hit is counted even when denied, so hammering a limited
// endpoint keeps the window full.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("rate:%s:%s", l.cfg.Name, identifier)

	now := time.Now()
	cutoff := now.Add(-l.cfg.Window).UnixMilli()

	pipe := l.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	count := pipe.ZCard(ctx, key)
	// UnixNano keeps members unique across calls in the same millisecond
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, l.cfg.Window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline: %w", err)
	}

	return count.Val() < int64(l.cfg.Max), nil
}
