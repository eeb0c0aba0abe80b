package leaderboard

import (
	"context"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
)

type Service struct {
	source Source
}

// NewService 创建排行榜服务，source 为 nil 时总是展示示例数据
func NewService(source Source) *Service {
	return &Service{source: source}
}

// Fetch 读取真实排行，任何失败都返回空列表
func (s *Service) Fetch(ctx context.Context) []Entry {
	if s.source == nil {
		return []Entry{}
	}
	rows, err := s.source.Top(ctx, Limit)
	if err != nil {
		logger.Warnf("读取排行榜失败: %v", err)
		return []Entry{}
	}
	out := make([]Entry, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.normalize())
	}
	return out
}

// Populate 返回要展示的排行榜，没有真实数据时使用示例数据
func (s *Service) Populate(ctx context.Context) Board {
	if rows := s.Fetch(ctx); len(rows) > 0 {
		return Board{Source: SourceLive, Entries: rows}
	}
	return Board{Source: SourceMock, Entries: MockEntries()}
}
