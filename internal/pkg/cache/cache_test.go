package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsSnapshot struct {
	FeesEnabled bool   `json:"fees_enabled"`
	MinDeposit  string `json:"min_deposit"`
}

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return New(client, 0), mr
}

func TestSetGetDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	in := settingsSnapshot{FeesEnabled: true, MinDeposit: "10"}
	require.NoError(t, c.Set(ctx, "settings:platform", in, time.Minute))
	assert.True(t, mr.Exists("settings:platform"))

	var out settingsSnapshot
	require.NoError(t, c.Get(ctx, "settings:platform", &out))
	assert.Equal(t, in, out)

	require.NoError(t, c.Delete(ctx, "settings:platform"))
	assert.ErrorIs(t, c.Get(ctx, "settings:platform", &out), ErrMiss)
}

func TestMissingKeyIsMiss(t *testing.T) {
	c, _ := newTestCache(t)
	var out settingsSnapshot
	assert.ErrorIs(t, c.Get(context.Background(), "absent", &out), ErrMiss)
	assert.NoError(t, c.Delete(context.Background(), "absent"))
}

func TestNilClientAlwaysMisses(t *testing.T) {
	c := New(nil, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	var out string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
}
