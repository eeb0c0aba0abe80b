package api

import (
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/bookmark"
	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/leaderboard"
	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/ratelimit"
	"github.com/SlpAus/book-summaries-backend/internal/platform/startup"
	"github.com/SlpAus/book-summaries-backend/internal/rating"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
	"github.com/SlpAus/book-summaries-backend/internal/submission"
	"github.com/SlpAus/book-summaries-backend/internal/user"
	"github.com/SlpAus/book-summaries-backend/internal/viewmodel"
	"github.com/SlpAus/book-summaries-backend/internal/views"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter 创建gin引擎并注册中间件和所有路由
func NewRouter(app *startup.App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	// 嵌套的书目标识以 %2F 编码后放在路径参数中
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(cors.New(corsConfig(app.Config.Server.Cors)))

	SetupRoutes(r, app)
	return r
}

func corsConfig(cfg config.CorsConfig) cors.Config {
	return cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, app *startup.App) {
	repo := app.Catalog.Repository()

	books := catalog.NewHandler(app.Catalog)
	listing := viewmodel.NewHandler(app.Catalog, app.Stats)
	progress := stats.NewHandler(app.Stats, repo)
	bookmarks := bookmark.NewHandler(app.Bookmarks, repo.Exists)
	ratings := rating.NewHandler(app.Rating)
	tracker := views.NewHandler(app.Tracker, repo)
	board := leaderboard.NewHandler(app.Leaderboard)
	submissions := submission.NewHandler(app.Searcher, app.Submissions)

	api := router.Group("/api")
	{
		// 不依赖访客身份的路由
		api.GET("/leaderboard", board.GetLeaderboard)
		api.POST("/track-view", tracker.TrackView)
		api.GET("/book/search", submissions.Search)
		api.GET("/book/details", submissions.Details)
		api.GET("/categories", submissions.Categories)
		api.GET("/books/category", submissions.ByCategory)
		api.GET("/books/random", books.GetRandomBook)

		visitor := api.Group("", user.EnsureUserCookieMiddleware())
		{
			// 书目相关的路由组 /api/books
			visitor.GET("/books", listing.ListBooks)
			visitor.DELETE("/books/filter", books.ClearFilter)
			visitor.GET("/books/:slug", books.GetBook)
			visitor.POST("/books/:slug/read", progress.ToggleRead)
			visitor.POST("/books/:slug/bookmark", bookmarks.Toggle)
			visitor.POST("/books/:slug/rating", ratings.Submit)

			// 当前访客相关的路由组 /api/me
			me := visitor.Group("/me")
			{
				me.GET("", user.GetMe)
				me.PUT("/username", user.PutUsername)
				me.GET("/stats", progress.GetMyStats)
				me.GET("/bookmarks", bookmarks.List)
				me.GET("/bookmarks/export", bookmarks.Export)
				me.DELETE("/bookmarks/:slug", bookmarks.Remove)
			}

			submitLimit := int64(app.Config.RateLimit.Submissions)
			if app.Limiter != nil && submitLimit > 0 {
				visitor.POST("/book/submit-summary", ratelimit.Middleware(app.Limiter, submitLimit), submissions.SubmitSummary)
			} else {
				visitor.POST("/book/submit-summary", submissions.SubmitSummary)
			}
		}
	}
}
