package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/SlpAus/book-summaries-backend/api"
	"github.com/SlpAus/book-summaries-backend/internal/platform/backup"
	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/platform/shutdown"
	"github.com/SlpAus/book-summaries-backend/internal/platform/startup"
	"github.com/SlpAus/book-summaries-backend/pkg/lifecycle"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("无法加载配置: %v", err))
	}
	if err := logger.Init(cfg.Server.Mode); err != nil {
		panic(fmt.Sprintf("无法初始化日志: %v", err))
	}
	defer logger.Sync()
	gin.SetMode(cfg.Server.Mode)

	database.InitDB(cfg.Database)
	database.InitRedis(cfg.Database.Redis)

	ctx := context.Background()

	// 1. 执行应用首次启动初始化流程 (Redis模式下会阻塞式获取初始Run ID)
	app, err := startup.InitializeApplication(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()

	// 2. 阻塞式执行一次启动后健康检查，然后异步启动后台的持续健康检查器
	if app.Checker != nil {
		logger.Infof("正在执行启动后健康检查...")
		app.Checker.PerformCheck(ctx)

		handle, err := gracefulMgr.NewServiceHandle("redis-health")
		if err != nil {
			panic(err)
		}
		go app.Checker.StartRedisHealthCheck(handle)
	}

	// 3. 启动定时快照
	backupHandle, err := gracefulMgr.NewServiceHandle("backup")
	if err != nil {
		panic(err)
	}
	go backup.StartBackupScheduler(backupHandle, app.Snapshotter, cfg.Backup.Interval)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: api.NewRouter(app),
	}
	go func() {
		logger.Infof("服务器已准备就绪，开始监听 %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic("Failed to start server: " + err.Error())
		}
	}()

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr, app.Snapshotter.CreateConsistentSnapshotInDB)
	coordinator.ListenForSignalsAndShutdown(server)
}
