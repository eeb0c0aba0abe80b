package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/book-summaries-backend/internal/bookmark"
	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/leaderboard"
	"github.com/SlpAus/book-summaries-backend/internal/platform/backup"
	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/health"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/platform/metadata"
	"github.com/SlpAus/book-summaries-backend/internal/platform/ratelimit"
	"github.com/SlpAus/book-summaries-backend/internal/platform/supabase"
	"github.com/SlpAus/book-summaries-backend/internal/rating"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
	"github.com/SlpAus/book-summaries-backend/internal/store"
	"github.com/SlpAus/book-summaries-backend/internal/submission"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/SlpAus/book-summaries-backend/internal/views"
)

// App 持有所有已经初始化并相互连接好的服务
type App struct {
	Config *config.Config

	Provider store.Provider
	Memory   *store.MemoryProvider // 仅在进程内存储模式下不为nil

	Stats       *stats.Service
	Catalog     *catalog.Service
	Ratings     rating.AggregateStore
	Rating      *rating.Service
	Bookmarks   *bookmark.Service
	Tracker     views.Tracker
	Leaderboard *leaderboard.Service
	Searcher    *submission.Searcher
	Submissions *submission.Service
	Limiter     ratelimit.Limiter

	Snapshotter *backup.Snapshotter
	Checker     *health.Checker // 仅在Redis模式下不为nil
}

// activateOnChange 在访客第一次产生进度时把访客写入 users 表
var activateOnChange = stats.HookFunc(func(_ context.Context, userID string, _ stats.UserStats) error {
	if user.IsUserActivated(userID) {
		return nil
	}
	return user.ActivateUser(userID)
})

// InitializeApplication 是应用首次启动时执行的总入口。
// 调用前需要完成 database.InitDB 和 database.InitRedis。
func InitializeApplication(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.Infof("开始应用首次初始化...")

	if err := metadata.PrimeDB(); err != nil {
		return nil, err
	}
	if err := user.PrimeCachedDB(); err != nil {
		return nil, err
	}
	if err := catalog.PrimeCachedDB(); err != nil {
		return nil, err
	}
	if err := store.MigrateDB(database.DB); err != nil {
		return nil, err
	}
	if err := submission.MigrateDB(database.DB); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	repo := catalog.DefaultRepository()

	if database.RedisEnabled() {
		app.Provider = store.NewRedisProvider(database.RDB)
		app.Ratings = rating.NewRedisStore(database.RDB)
		app.Snapshotter = backup.NewRedisSnapshotter(database.DB, database.RDB, app.Ratings)
		app.Limiter = ratelimit.NewRedisLimiter(database.RDB, "submissions", cfg.RateLimit.Window)
		app.Checker = health.NewChecker(health.RedisRunID(database.RDB), app.RebuildCache)
		if err := app.Checker.InitializeRunID(ctx); err != nil {
			return nil, err
		}
	} else {
		app.Memory = store.NewMemoryProvider()
		app.Provider = app.Memory
		app.Ratings = rating.NewMemoryStore()
		app.Snapshotter = backup.NewMemorySnapshotter(database.DB, app.Memory, app.Ratings)
		app.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Window)
	}

	app.Stats = stats.NewService(app.Provider)
	app.Stats.AddHook(activateOnChange)
	app.Catalog = catalog.NewService(app.Provider, repo)
	app.Rating = rating.NewService(app.Stats, app.Ratings, repo)
	app.Bookmarks = bookmark.NewService(app.Stats, repo)
	app.Submissions = submission.NewService(database.DB)
	app.Searcher = submission.NewSearcher(cfg.Search, nil)

	tracker, err := views.NewTracker(cfg)
	if err != nil {
		return nil, err
	}
	app.Tracker = tracker
	views.WarmupCounts(ctx, tracker, repo)

	app.Leaderboard = leaderboard.NewService(app.newLeaderboardSource())

	if err := app.warmup(ctx); err != nil {
		return nil, err
	}

	logger.Infof("应用初始化完成！")
	return app, nil
}

func (a *App) newLeaderboardSource() leaderboard.Source {
	if a.Config.Leaderboard.Source == config.LeaderboardSourceLocal {
		var ranking leaderboard.Ranking
		if database.RedisEnabled() {
			ranking = leaderboard.NewRedisRanking(database.RDB)
		} else {
			ranking = leaderboard.NewMemoryRanking()
		}
		local := leaderboard.NewLocalSource(ranking, user.Username)
		a.Stats.AddHook(local)
		logger.Infof("排行榜使用本地访客数据。")
		return local
	}

	client, err := supabase.New(a.Config.Supabase)
	if err != nil {
		logger.Warnf("托管后端未配置，排行榜将展示示例数据: %v", err)
		return nil
	}
	return leaderboard.NewSupabaseSource(client)
}

// warmup 把SQLite中的快照加载到热存储
func (a *App) warmup(ctx context.Context) error {
	if a.Memory != nil {
		n, err := store.LoadAll(ctx, database.DB, a.Memory)
		if err != nil {
			return err
		}
		logger.Infof("成功从快照恢复 %d 位访客的进度。", n)
	} else {
		n, err := store.WarmupCache(ctx, database.DB, database.RDB)
		if err != nil {
			return err
		}
		logger.Infof("成功预热 %d 位访客的进度到Redis。", n)
	}
	return rating.WarmupCache(ctx, database.DB, a.Ratings, a.Catalog.Repository())
}

// RebuildCache 是一个专门用于在运行时热重建Redis缓存的函数
func (a *App) RebuildCache(ctx context.Context) error {
	logger.Infof("开始缓存热重建...")

	if err := user.WarmupCache(); err != nil {
		return err
	}
	if err := a.warmup(ctx); err != nil {
		return fmt.Errorf("缓存热重建失败: %w", err)
	}

	logger.Infof("缓存热重建完成。")
	return nil
}
