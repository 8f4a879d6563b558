// Package ratelimit implements sliding-window admission control backed by
// Redis sorted sets, so counting stays correct when sessions for the same
// user land on different processes.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config holds the window parameters.
type Config struct {
	Window time.Duration
	Max    int
}

// DefaultConfig allows 5 events per trailing 5 seconds.
func DefaultConfig() Config {
	return Config{Window: 5 * time.Second, Max: 5}
}

// Limiter tracks event timestamps per (user, action) in a Redis sorted set.
type Limiter struct {
	rdb *redis.Client
	cfg Config
}

// New creates a limiter. Zero config fields fall back to the defaults.
func New(rdb *redis.Client, cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Max <= 0 {
		cfg.Max = def.Max
	}
	return &Limiter{rdb: rdb, cfg: cfg}
}

func (l *Limiter) key(userID uuid.UUID, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, userID)
}

// Allow reports whether the user may perform the action now.
// Accepted events are recorded; rejections leave no trace and so never
// count toward future windows.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID, action string) (bool, error) {
	key := l.key(userID, action)
	now := time.Now()
	windowStart := now.Add(-l.cfg.Window)

	// Drop entries that slid out of the window before counting.
	if err := l.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10)).Err(); err != nil {
		return false, fmt.Errorf("purge window: %w", err)
	}

	count, err := l.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("count window: %w", err)
	}
	if count >= int64(l.cfg.Max) {
		return false, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10)
	if err := l.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}

	// Idle keys clean themselves up after two windows.
	if err := l.rdb.Expire(ctx, key, 2*l.cfg.Window).Err(); err != nil {
		return false, fmt.Errorf("refresh expiry: %w", err)
	}

	return true, nil
}

// Reset clears the window for a (user, action) pair.
func (l *Limiter) Reset(ctx context.Context, userID uuid.UUID, action string) error {
	if err := l.rdb.Del(ctx, l.key(userID, action)).Err(); err != nil {
		return fmt.Errorf("reset window: %w", err)
	}
	return nil
}
