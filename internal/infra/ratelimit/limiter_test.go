package ratelimit

import (
	"context"
	"testing"
	"time"

	"parkshare/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewLimiter(rdb, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            time.Minute,
	})
}

func TestLimiter_Allow_ExhaustsBucket(t *testing.T) {
	l := newTestLimiter(t)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	ctx := context.Background()

	first, err := l.Allow(ctx, "signin:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, int64(1), first.Remaining)

	second, err := l.Allow(ctx, "signin:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, second.Allowed)

	third, err := l.Allow(ctx, "signin:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, third.Allowed)
	assert.Equal(t, time.Second, third.RetryAfter)

	other, err := l.Allow(ctx, "signin:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestLimiter_Allow_Refills(t *testing.T) {
	l := newTestLimiter(t)
	start := time.Now()
	l.now = func() time.Time { return start }
	ctx := context.Background()

	for range 2 {
		_, err := l.Allow(ctx, "k")
		require.NoError(t, err)
	}

	l.now = func() time.Time { return start.Add(1500 * time.Millisecond) }
	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNew_DisabledWithoutRedis(t *testing.T) {
	cfg := &config.Config{RateLimit: &config.RateLimitConfig{Enabled: true}}
	assert.Nil(t, New(Params{Config: cfg}))
}
