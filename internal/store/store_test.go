package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisProvider(t *testing.T) (*RedisProvider, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisProvider(rdb), mr, rdb
}

func providers(t *testing.T) map[string]Provider {
	rp, _, _ := newRedisProvider(t)
	return map[string]Provider{
		"memory": NewMemoryProvider(),
		"redis":  rp,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			s := p.ForUser("u1")

			_, ok, err := s.Get(ctx, KeyUserStats)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, KeyUserStats, []byte(`{"points":5}`)))
			v, ok, err := s.Get(ctx, KeyUserStats)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"points":5}`, string(v))

			require.NoError(t, s.SetMany(ctx, map[string][]byte{
				KeyBookmarks: []byte(`["a"]`),
				KeyUserStats: []byte(`{"points":10}`),
			}))
			v, _, _ = s.Get(ctx, KeyBookmarks)
			assert.Equal(t, `["a"]`, string(v))
			v, _, _ = s.Get(ctx, KeyUserStats)
			assert.Equal(t, `{"points":10}`, string(v))

			require.NoError(t, s.Delete(ctx, KeyBookmarks))
			_, ok, err = s.Get(ctx, KeyBookmarks)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoresAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.ForUser("a").Set(ctx, KeyBookFilter, []byte(`{}`)))
			_, ok, err := p.ForUser("b").Get(ctx, KeyBookFilter)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEmptyUserIDRejected(t *testing.T) {
	ctx := context.Background()
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			s := p.ForUser("")
			_, _, err := s.Get(ctx, KeyBookmarks)
			assert.ErrorIs(t, err, ErrEmptyUserID)
			assert.ErrorIs(t, s.Set(ctx, KeyBookmarks, []byte(`[]`)), ErrEmptyUserID)
		})
	}
}

func TestRedisWritesMarkUserDirty(t *testing.T) {
	ctx := context.Background()
	p, mr, _ := newRedisProvider(t)

	require.NoError(t, p.ForUser("u1").Set(ctx, KeyBookmarks, []byte(`[]`)))
	require.NoError(t, p.ForUser("u2").Delete(ctx, KeyBookFilter))

	members, err := mr.Members(DirtySetKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, members)
}

func TestRedisReportsConnectionErrors(t *testing.T) {
	ctx := context.Background()
	p, mr, _ := newRedisProvider(t)
	mr.Close()

	_, _, err := p.ForUser("u1").Get(ctx, KeyUserStats)
	assert.Error(t, err)
}
