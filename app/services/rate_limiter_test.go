package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryRateLimiter_RollingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryRateLimiter(3, time.Minute)
	l.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, ok, "event %d", i)
		clock.Advance(10 * time.Second)
	}

	ok, _ := l.Allow(ctx, "user:1")
	assert.False(t, ok, "fourth event inside the minute")

	ok, _ = l.Allow(ctx, "user:2")
	assert.True(t, ok, "keys are independent")

	// first event was at 09:00:00, now 09:00:30 -> slide past it
	clock.Advance(31 * time.Second)
	ok, _ = l.Allow(ctx, "user:1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "user:1")
	assert.False(t, ok)
}

func TestMemoryRateLimiter_DropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryRateLimiter(2, time.Minute)
	l.now = clock.Now
	ctx := context.Background()

	for _, key := range []string{"15550000001", "15550000002", "15550000003"} {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
	}
	clock.Advance(30 * time.Second)
	_, _ = l.Allow(ctx, "15550000003")
	assert.Len(t, l.events, 3, "keys inside the window are kept")

	clock.Advance(50 * time.Second)
	ok, err := l.Allow(ctx, "15550000004")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, l.events, 2)
	assert.Contains(t, l.events, "15550000003", "its second event is still inside the window")
	assert.Contains(t, l.events, "15550000004")
	assert.NotContains(t, l.events, "15550000001")
}

func TestMemoryRateLimiter_ZeroLimit(t *testing.T) {
	ok, err := NewMemoryRateLimiter(0, time.Minute).Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRateLimiter(t *testing.T) {
	_, rc := newTestRedis(t)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	l := NewRedisRateLimiter(rc, "test:", 2, time.Minute)
	l.now = clock.Now
	ctx := context.Background()

	ok, err := l.Allow(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)
	clock.Advance(time.Second)
	ok, _ = l.Allow(ctx, "7")
	assert.True(t, ok)
	clock.Advance(time.Second)
	ok, _ = l.Allow(ctx, "7")
	assert.False(t, ok)

	n, err := rc.ZCard(ctx, "test:ratelimit:7").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "refused events are withdrawn")

	clock.Advance(time.Minute)
	ok, _ = l.Allow(ctx, "7")
	assert.True(t, ok)
}
