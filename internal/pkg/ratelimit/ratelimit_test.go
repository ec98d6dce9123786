package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, opts Options) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, opts), mr
}

func TestAllowLocksAfterMaxAttempts(t *testing.T) {
	l, mr := newLimiter(t, Options{Prefix: "rl", MaxAttempts: 3, Window: time.Minute, Lockout: 5 * time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "withdraw:u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d should pass", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "withdraw:u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5*time.Minute, res.RetryAfter)

	res, err = l.Allow(ctx, "withdraw:u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "locked key stays blocked")
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	mr.FastForward(5*time.Minute + time.Second)

	res, err = l.Allow(ctx, "withdraw:u1")
	require.NoError(t, err)
	assert.True(t, res.Allowed, "lockout expires")
}

func TestKeysAreIndependentAndWindowExpires(t *testing.T) {
	l, mr := newLimiter(t, Options{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	res, _ := l.Allow(ctx, "a")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "b")
	assert.True(t, res.Allowed)

	mr.FastForward(2 * time.Minute)
	res, _ = l.Allow(ctx, "a")
	assert.True(t, res.Allowed, "window counter expired")
}

func TestResetAndNilClient(t *testing.T) {
	l, _ := newLimiter(t, Options{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "k")
	res, _ := l.Allow(ctx, "k")
	assert.False(t, res.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	res, _ = l.Allow(ctx, "k")
	assert.True(t, res.Allowed)

	open := New(nil, Options{})
	res, err := open.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCounterAlwaysCarriesWindowTTL(t *testing.T) {
	l, mr := newLimiter(t, Options{Prefix: "rl", MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("rl:count:k"))

	// a counter written without expiry is healed by the next attempt
	mr.Set("rl:count:orphan", "3")
	res, err := l.Allow(ctx, "orphan")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, time.Minute, mr.TTL("rl:count:orphan"))
}
