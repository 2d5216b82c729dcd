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

func TestClient_NilIsAlwaysMiss(t *testing.T) {
	var c *Client
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, c.Delete(ctx, "k"))

	empty := New(nil)
	v, err = empty.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestClient_FailsSafeWhenRedisDown(t *testing.T) {
	c := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1}))
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, v)
	assert.NoError(t, c.Delete(ctx, "k", "k2"))
}

func TestClient_RoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()
	c := New(rdb)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "product:1", []byte(`{"name":"Pomidor"}`), time.Minute))
	v, err := c.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Pomidor"}`, string(v))

	require.NoError(t, c.Delete(ctx, "product:1"))
	v, err = c.Get(ctx, "product:1")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, c.Set(ctx, "product:2", []byte("x"), time.Minute))
	srv.FastForward(2 * time.Minute)
	v, err = c.Get(ctx, "product:2")
	require.NoError(t, err)
	assert.Nil(t, v)
}
