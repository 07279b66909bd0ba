package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return Wrap(client), mr
}

func TestJSONRoundTrip(t *testing.T) {
	r, _ := newClient(t)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, r.GetJSON(ctx, "k", &out), ErrCacheMiss)

	require.NoError(t, r.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute))
	require.NoError(t, r.GetJSON(ctx, "k", &out))
	assert.Equal(t, 1, out["a"])
}

func TestSetJSONAtDropsFillAfterInvalidate(t *testing.T) {
	r, mr := newClient(t)
	ctx := context.Background()

	v, err := r.Version(ctx, "k:v")
	require.NoError(t, err)
	assert.Zero(t, v)

	// A reader took version 0, then an invalidation landed before it filled.
	require.NoError(t, r.Invalidate(ctx, time.Hour, map[string]string{"k": "k:v"}))
	assert.ErrorIs(t, r.SetJSONAt(ctx, "k", "k:v", v, "stale", time.Minute), ErrStaleWrite)
	assert.False(t, mr.Exists("k"))

	v, err = r.Version(ctx, "k:v")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	require.NoError(t, r.SetJSONAt(ctx, "k", "k:v", v, "fresh", time.Minute))

	var out string
	require.NoError(t, r.GetJSON(ctx, "k", &out))
	assert.Equal(t, "fresh", out)
	assert.Greater(t, mr.TTL("k:v"), time.Duration(0))
}
