package store

import (
	"context"
	"testing"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	return db
}

func TestSnapshotRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	p, mr, rdb := newRedisProvider(t)

	require.NoError(t, p.ForUser("u1").SetMany(ctx, map[string][]byte{
		KeyBookmarks: []byte(`["dune"]`),
		KeyUserStats: []byte(`{"points":15}`),
	}))

	rows, err := CollectSnapshots(ctx, rdb, []string{"u1"})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.NoError(t, UpsertSnapshots(db, rows))

	mr.FlushAll()
	n, err := WarmupCache(ctx, db, rdb)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, ok, err := p.ForUser("u1").Get(ctx, KeyUserStats)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"points":15}`, string(v))

	_, ok, err = p.ForUser("u1").Get(ctx, KeyBookFilter)
	require.NoError(t, err)
	assert.False(t, ok, "empty snapshot values stand for deleted keys")
}

func TestSnapshotMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	src := NewMemoryProvider()
	require.NoError(t, src.ForUser("u1").Set(ctx, KeyBookmarks, []byte(`["a","b"]`)))
	require.NoError(t, UpsertSnapshots(db, src.Dump()))

	// 覆盖写入后删除的键不会被恢复
	require.NoError(t, src.ForUser("u1").Delete(ctx, KeyBookmarks))
	require.NoError(t, UpsertSnapshots(db, src.Dump()))

	dst := NewMemoryProvider()
	n, err := LoadAll(ctx, db, dst)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, src.ForUser("u1").Set(ctx, KeyUserStats, []byte(`{}`)))
	require.NoError(t, UpsertSnapshots(db, src.Dump()))
	n, err = LoadAll(ctx, db, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.ElementsMatch(t, []string{"u1"}, dst.Users())
}
