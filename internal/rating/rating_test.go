package rating

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
	"github.com/SlpAus/book-summaries-backend/internal/store"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo() *catalog.Repository {
	return catalog.NewRepository([]catalog.ItemView{{Slug: "dune", Title: "Dune"}, {Slug: "emma", Title: "Emma"}})
}

func aggregateStores(t *testing.T) map[string]AggregateStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]AggregateStore{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(rdb),
	}
}

func TestRunningAverageAcrossUsers(t *testing.T) {
	ctx := context.Background()
	for name, agg := range aggregateStores(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo()
			svc := NewService(stats.NewService(store.NewMemoryProvider()), agg, repo)

			res, err := svc.Submit(ctx, "u1", "dune", 4)
			require.NoError(t, err)
			assert.Equal(t, 4.0, res.AverageValue)
			assert.Equal(t, "4.0", res.Average)
			assert.Equal(t, 1, res.Count)
			assert.Equal(t, "★★★★☆", res.Stars)

			res, err = svc.Submit(ctx, "u2", "dune", 2)
			require.NoError(t, err)
			assert.Equal(t, 3.0, res.AverageValue)
			assert.Equal(t, 2, res.Count)

			it, _ := repo.Get("dune")
			assert.Equal(t, 3.0, it.Rating)
			assert.Equal(t, 2, it.RatingCount)
		})
	}
}

func TestReRatingReplacesSample(t *testing.T) {
	ctx := context.Background()
	st := stats.NewService(store.NewMemoryProvider())
	svc := NewService(st, NewMemoryStore(), newRepo())

	res, err := svc.Submit(ctx, "u1", "dune", 5)
	require.NoError(t, err)
	assert.True(t, res.Awarded)
	assert.Equal(t, "🎉 +3 points for rating!", res.Notification)
	assert.Equal(t, 3, res.Progress.Points)

	_, err = svc.Submit(ctx, "u2", "dune", 3)
	require.NoError(t, err)

	res, err = svc.Submit(ctx, "u1", "dune", 1)
	require.NoError(t, err)
	assert.False(t, res.Awarded)
	assert.Empty(t, res.Notification)
	assert.Equal(t, 2, res.Count, "同一访客再次评分不增加人数")
	assert.Equal(t, 2.0, res.AverageValue)
	assert.Equal(t, 3, res.Progress.Points)
	assert.Equal(t, 1, res.Progress.RatingsGiven)

	u1 := st.GetStats(ctx, "u1")
	assert.Equal(t, 1, u1.Ratings["dune"])
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(stats.NewService(store.NewMemoryProvider()), NewMemoryStore(), newRepo())

	for _, r := range []int{0, 6, -1} {
		_, err := svc.Submit(ctx, "u1", "dune", r)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}
	_, err := svc.Submit(ctx, "u1", "missing", 3)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

type failingSetProvider struct{ inner store.Provider }

type failingSetStore struct{ store.Store }

func (failingSetStore) SetMany(context.Context, map[string][]byte) error {
	return errors.New("write failed")
}

func (p failingSetProvider) ForUser(id string) store.Store {
	return failingSetStore{p.inner.ForUser(id)}
}

func TestAggregateRolledBackWhenProgressWriteFails(t *testing.T) {
	ctx := context.Background()
	agg := NewMemoryStore()
	svc := NewService(stats.NewService(failingSetProvider{store.NewMemoryProvider()}), agg, newRepo())

	_, err := svc.Submit(ctx, "u1", "dune", 4)
	require.Error(t, err)

	all, err := agg.All(ctx)
	require.NoError(t, err)
	assert.Zero(t, all["dune"].Sum)
	assert.Zero(t, all["dune"].Count)
	it, _ := svc.repo.Get("dune")
	assert.Zero(t, it.RatingCount)
}

func TestRedisAddConcurrent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(ctx, "dune", 3, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, Aggregate{Sum: 15, Count: 5, Version: 5}, all["dune"])
}

// gatedStore 在指定评分的 Add 完成后阻塞，直到 release 被关闭
type gatedStore struct {
	AggregateStore
	holdSum float64
	added   chan struct{}
	release chan struct{}
}

func (g *gatedStore) Add(ctx context.Context, slug string, dSum float64, dCount int) (Aggregate, error) {
	a, err := g.AggregateStore.Add(ctx, slug, dSum, dCount)
	if dSum == g.holdSum {
		close(g.added)
		<-g.release
	}
	return a, err
}

func TestConcurrentRatersKeepCatalogCurrent(t *testing.T) {
	ctx := context.Background()
	for name, agg := range aggregateStores(t) {
		t.Run(name, func(t *testing.T) {
			repo := newRepo()
			gated := &gatedStore{AggregateStore: agg, holdSum: 5, added: make(chan struct{}), release: make(chan struct{})}
			svc := NewService(stats.NewService(store.NewMemoryProvider()), gated, repo)

			done := make(chan error, 1)
			go func() {
				_, err := svc.Submit(ctx, "slow", "dune", 5)
				done <- err
			}()
			<-gated.added

			_, err := svc.Submit(ctx, "fast", "dune", 1)
			require.NoError(t, err)

			close(gated.release)
			require.NoError(t, <-done)

			all, err := agg.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, all["dune"].Count)

			it, _ := repo.Get("dune")
			assert.Equal(t, 2, it.RatingCount)
			assert.Equal(t, 3.0, it.Rating)
		})
	}
}

func TestWarmupAndPersist(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, catalog.MigrateDB(db))
	require.NoError(t, db.Create(&[]catalog.Book{{Slug: "dune", Title: "Dune"}, {Slug: "emma", Title: "Emma"}}).Error)

	require.NoError(t, PersistAggregates(db, map[string]Aggregate{"dune": {Sum: 9, Count: 2}, "ghost": {Sum: 1, Count: 1}}))

	agg := NewMemoryStore()
	repo := newRepo()
	require.NoError(t, WarmupCache(ctx, db, agg, repo))

	all, _ := agg.All(ctx)
	assert.Equal(t, map[string]Aggregate{"dune": {Sum: 9, Count: 2}}, all)
	it, _ := repo.Get("dune")
	assert.Equal(t, 4.5, it.Rating)

	// 重新加载后，新的聚合从版本1开始也能更新书目
	svc := NewService(stats.NewService(store.NewMemoryProvider()), agg, repo)
	_, err = svc.Submit(ctx, "u1", "dune", 3)
	require.NoError(t, err)
	it, _ = repo.Get("dune")
	assert.Equal(t, 3, it.RatingCount)
	assert.Equal(t, 4.0, it.Rating)

	var count int64
	db.Model(&catalog.Book{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestSubmitHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(stats.NewService(store.NewMemoryProvider()), NewMemoryStore(), newRepo()))
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(user.UserIDKey, "u1"); c.Next() })
	r.POST("/api/books/:slug/rating", h.Submit)

	do := func(slug, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/books/"+slug+"/rating", strings.NewReader(body)))
		return w
	}

	assert.Equal(t, http.StatusOK, do("dune", `{"rating":4}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("dune", `{"rating":9}`).Code)
	assert.Equal(t, http.StatusBadRequest, do("dune", `nope`).Code)
	assert.Equal(t, http.StatusNotFound, do("ghost", `{"rating":3}`).Code)
}

func TestStars(t *testing.T) {
	assert.Equal(t, "☆☆☆☆☆", Stars(0))
	assert.Equal(t, "★★★★★", Stars(5))
	assert.Equal(t, "★★☆☆☆", Stars(2))
}
