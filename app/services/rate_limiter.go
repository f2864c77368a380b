package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/adwatch/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter admits at most limit events per key within a rolling window
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryRateLimiter keeps a timestamp log per key. It is process local.
// Keys whose events have all left the window are dropped, at most once per window.
type MemoryRateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	events    map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryRateLimiter creates an in-process limiter
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
		now:    utils.UTCNow,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.events[key] = kept
		return false, nil
	}
	l.events[key] = append(kept, now)
	return true, nil
}

// sweep drops keys with no event after cutoff; events are appended in order
func (l *MemoryRateLimiter) sweep(cutoff time.Time) {
	for key, times := range l.events {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.events, key)
		}
	}
}

// RedisRateLimiter shares the window across replicas using a sorted set per key
type RedisRateLimiter struct {
	rc     *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisRateLimiter creates a limiter backed by Redis
func NewRedisRateLimiter(rc *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		rc:     rc,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    utils.UTCNow,
	}
}

// Allow records the event first and withdraws it when over the limit, so
// concurrent callers can be refused together but never admitted together.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return false, nil
	}

	redisKey := l.prefix + "ratelimit:" + key
	now := l.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-l.window).UnixNano(), 10)

	var card *redis.IntCmd
	_, err := l.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+cutoff)
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		card = pipe.ZCard(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}

	if card.Val() > int64(l.limit) {
		if err := l.rc.ZRem(ctx, redisKey, member).Err(); err != nil {
			return false, fmt.Errorf("rate limiter: %w", err)
		}
		return false, nil
	}
	return true, nil
}
