package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// RunIDFunc 返回Redis实例当前的run_id，实例重启后会变化
type RunIDFunc func(ctx context.Context) (string, error)

// RebuildFunc 在检测到Redis重启后，从SQLite重建缓存
type RebuildFunc func(ctx context.Context) error

// RedisRunID 从Redis服务器信息中提取run_id
func RedisRunID(rdb *redis.Client) RunIDFunc {
	return func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		info, err := rdb.Info(ctx, "server").Result()
		if err != nil {
			return "", err
		}
		matches := runIDPattern.FindStringSubmatch(info)
		if len(matches) < 2 {
			return "", fmt.Errorf("无法在Redis INFO中找到run_id")
		}
		return matches[1], nil
	}
}

// Checker 周期性地检查Redis是否可用、是否重启过，必要时触发缓存重建
type Checker struct {
	runID   RunIDFunc
	rebuild RebuildFunc
	status  *statusManager
}

func NewChecker(runID RunIDFunc, rebuild RebuildFunc) *Checker {
	return &Checker{runID: runID, rebuild: rebuild, status: newStatusManager("")}
}

// InitializeRunID 在应用启动时执行一次，获取并设置初始的run_id。
func (c *Checker) InitializeRunID(ctx context.Context) error {
	logger.Infof("正在获取初始Redis Run ID...")
	runID, err := c.runID(ctx)
	if err != nil {
		return fmt.Errorf("无法在启动时获取Redis Run ID，请检查Redis服务: %w", err)
	}
	c.status = newStatusManager(runID)
	database.SetInitialRunID(runID)
	logger.Infof("获取初始Redis Run ID成功: %s", runID)
	return nil
}

func (c *Checker) State() State {
	return c.status.State()
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作，并同步全局可用状态。
func (c *Checker) PerformCheck(ctx context.Context) {
	currentRunID, err := c.runID(ctx)
	connected := err == nil

	if c.status.Assess(connected, currentRunID) {
		rebuildErr := c.rebuild(ctx)
		if rebuildErr != nil {
			logger.Errorf("健康检查错误: 缓存热重建失败: %v", rebuildErr)
		}
		// 重建后再次检查run_id以确认原子性
		idAfterRebuild, err := c.runID(ctx)
		if err != nil {
			logger.Errorf("健康检查错误: 缓存重建后无法连接到Redis，重建无效。")
		}
		c.status.MarkRebuildComplete(rebuildErr == nil && err == nil, idAfterRebuild)
	}

	database.UpdateStatus(c.status.State() == StateHealthy, c.status.RunID())
}

// StartRedisHealthCheck 启动一个后台Goroutine来定期、阻塞式地执行健康检查。
func (c *Checker) StartRedisHealthCheck(handle *lifecycle.Handle) {
	defer handle.Close()
	logger.Infof("Redis高级健康检查器已启动。")

	for {
		if err := handle.Sleep(checkInterval); err != nil {
			logger.Infof("健康检查器: 收到停机信号，正在关闭...")
			return
		}
		c.PerformCheck(handle.Ctx())
	}
}
