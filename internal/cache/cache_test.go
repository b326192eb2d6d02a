package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestAside_FetchesOnceThenHits(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: 1, Name: "alice"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, c.Aside(ctx, AccountKey(1), &first, time.Minute, fetch(&first)))
	var second cachedThing
	require.NoError(t, c.Aside(ctx, AccountKey(1), &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("account:1"))

	mr.FastForward(2 * time.Minute)
	var third cachedThing
	require.NoError(t, c.Aside(ctx, AccountKey(1), &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	var dest cachedThing
	err := c.Aside(context.Background(), "k", &dest, time.Minute, func() error { return errors.New("db down") })
	require.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestInvalidateAccount(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, AccountKey(3), cachedThing{ID: 3}, time.Minute))
	require.NoError(t, c.SetJSON(ctx, AccountSubjectKey("sub-3"), cachedThing{ID: 3}, time.Minute))

	c.InvalidateAccount(ctx, 3, "sub-3")

	assert.False(t, mr.Exists("account:3"))
	assert.False(t, mr.Exists("account:sub:sub-3"))
}

func TestNilCacheIsAlwaysMiss(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	found, err := c.GetJSON(ctx, "k", &cachedThing{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "k", 1, time.Minute))

	calls := 0
	var dest cachedThing
	require.NoError(t, New(nil).Aside(ctx, "k", &dest, time.Minute, func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
	c.Invalidate(ctx, "k")
}

func TestInitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := InitRedis(mr.Addr())
	require.NotNil(t, client)
	_ = client.Close()

	client = InitRedis("redis://" + mr.Addr() + "/0")
	require.NotNil(t, client)
	_ = client.Close()

	assert.Nil(t, InitRedis("redis://%zz"))
}
