package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/adwatch/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ResponseCache stores short-lived generated text keyed by a caller-built key
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryResponseCache is an in-process TTL cache
type MemoryResponseCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryResponseCache creates an empty cache
func NewMemoryResponseCache() *MemoryResponseCache {
	return &MemoryResponseCache{
		entries: make(map[string]memoryEntry),
		now:     utils.UTCNow,
	}
}

func (c *MemoryResponseCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *MemoryResponseCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}

// Purge drops expired entries
func (c *MemoryResponseCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// RedisResponseCache stores entries in Redis with native expiry
type RedisResponseCache struct {
	rc     *redis.Client
	prefix string
}

// NewRedisResponseCache creates a Redis-backed cache
func NewRedisResponseCache(rc *redis.Client, prefix string) *RedisResponseCache {
	return &RedisResponseCache{rc: rc, prefix: prefix}
}

func (c *RedisResponseCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.rc.Get(ctx, c.prefix+"narrative:"+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *RedisResponseCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = c.rc.Set(ctx, c.prefix+"narrative:"+key, value, ttl).Err()
}

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock is held by another worker")

// Locker grants exclusive, expiring leases on a key
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryLocker is a process-local Locker
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemoryLocker creates an empty lock table
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), now: utils.UTCNow}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, ErrLockHeld
	}
	until := now.Add(ttl)
	l.held[key] = until
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(until) {
			delete(l.held, key)
		}
	}, nil
}

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX and an owner token
type RedisLocker struct {
	rc     *redis.Client
	prefix string
}

// NewRedisLocker creates a Redis-backed Locker
func NewRedisLocker(rc *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{rc: rc, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	redisKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// the caller's context may already be done when releasing
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseLockScript.Run(releaseCtx, l.rc, []string{redisKey}, token).Err()
	}, nil
}
