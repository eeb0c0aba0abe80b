package views

import (
	"context"
	"fmt"

	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/platform/supabase"
)

// Seeder 接收启动时加载的浏览数
type Seeder interface {
	SetViews(slug string, views int64) bool
}

// NewTracker 根据配置选择浏览计数的后端
func NewTracker(cfg *config.Config) (Tracker, error) {
	switch cfg.Views.Backend {
	case config.ViewsBackendSupabase:
		client, err := supabase.New(cfg.Supabase)
		if err != nil {
			return nil, err
		}
		logger.Infof("浏览计数将写入托管REST后端。")
		return NewRestTracker(client), nil
	case config.ViewsBackendSQL, "":
		t := NewSQLTracker(database.ViewsDB)
		if err := t.MigrateDB(); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("未知的浏览计数后端: %s", cfg.Views.Backend)
	}
}

// WarmupCounts 把已有的浏览数加载到书目仓库，失败时只记录日志
func WarmupCounts(ctx context.Context, t Tracker, seeder Seeder) {
	counts, err := t.Counts(ctx)
	if err != nil {
		logger.Warnf("加载浏览数失败，热门排序将从0开始: %v", err)
		return
	}
	n := 0
	for slug, v := range counts {
		if seeder.SetViews(slug, v) {
			n++
		}
	}
	logger.Infof("成功加载 %d 本书的浏览数。", n)
}
