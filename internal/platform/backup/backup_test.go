package backup

import (
	"context"
	"testing"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/metadata"
	"github.com/SlpAus/book-summaries-backend/internal/rating"
	"github.com/SlpAus/book-summaries-backend/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.MigrateDB(db))
	require.NoError(t, metadata.MigrateDB(db))
	require.NoError(t, catalog.MigrateDB(db))
	require.NoError(t, db.Create(&catalog.Book{Slug: "dune", Title: "Dune"}).Error)
	return db
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSnapshotPersistsDirtyUsers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mr, rdb := newRedis(t)

	p := store.NewRedisProvider(rdb)
	ratings := rating.NewRedisStore(rdb)
	require.NoError(t, p.ForUser("u1").SetMany(ctx, map[string][]byte{
		store.KeyUserStats: []byte(`{"points":3}`),
		store.KeyBookmarks: []byte(`[]`),
	}))
	_, err := ratings.Add(ctx, "dune", 4, 1)
	require.NoError(t, err)

	s := NewRedisSnapshotter(db, rdb, ratings)
	users, err := s.CreateConsistentSnapshotInDB(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	var snap store.Snapshot
	require.NoError(t, db.Where("user_id = ? AND key = ?", "u1", store.KeyUserStats).First(&snap).Error)
	assert.Equal(t, `{"points":3}`, snap.Value)

	var book catalog.Book
	require.NoError(t, db.Where("slug = ?", "dune").First(&book).Error)
	assert.Equal(t, 4.0, book.RatingSum)
	assert.Equal(t, 1, book.RatingCount)

	n, err := metadata.GetSnapshotUsers(db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	at, err := metadata.GetLastSnapshotAt(db)
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	assert.False(t, mr.Exists(store.DirtySetKey))
	assert.False(t, mr.Exists(store.ProcessingDirtySetKey))

	// 没有新的修改时不做任何事
	users, err = s.CreateConsistentSnapshotInDB(ctx)
	require.NoError(t, err)
	assert.Zero(t, users)
}

func TestRedisSnapshotRestoresDirtySetOnFailure(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	mr, rdb := newRedis(t)

	p := store.NewRedisProvider(rdb)
	require.NoError(t, p.ForUser("u1").Set(ctx, store.KeyUserStats, []byte(`{"points":10}`)))
	require.NoError(t, db.Migrator().DropTable(&store.Snapshot{}))

	s := NewRedisSnapshotter(db, rdb, rating.NewRedisStore(rdb))
	_, err := s.CreateConsistentSnapshotInDB(ctx)
	require.Error(t, err)

	members, err := mr.Members(store.DirtySetKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)
	assert.False(t, mr.Exists(store.ProcessingDirtySetKey))

	// 修复后下一次备份会补上
	require.NoError(t, store.MigrateDB(db))
	users, err := s.CreateConsistentSnapshotInDB(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)
}

func TestMemorySnapshotAndReload(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	mem := store.NewMemoryProvider()
	require.NoError(t, mem.ForUser("u1").Set(ctx, store.KeyBookmarks, []byte(`["dune"]`)))
	require.NoError(t, mem.ForUser("u2").Set(ctx, store.KeyUserStats, []byte(`{"points":5}`)))
	ratings := rating.NewMemoryStore()
	_, err := ratings.Add(ctx, "dune", 9, 2)
	require.NoError(t, err)

	users, err := NewMemorySnapshotter(db, mem, ratings).CreateConsistentSnapshotInDB(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	restored := store.NewMemoryProvider()
	n, err := store.LoadAll(ctx, db, restored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	blob, ok, err := restored.ForUser("u1").Get(ctx, store.KeyBookmarks)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `["dune"]`, string(blob))

	var book catalog.Book
	require.NoError(t, db.Where("slug = ?", "dune").First(&book).Error)
	assert.Equal(t, 2, book.RatingCount)
}
