package catalog

import (
	"context"
	"encoding/json"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/store"
)

// Service 负责访客筛选偏好的读写，并基于仓库生成列表
type Service struct {
	provider store.Provider
	repo     *Repository
}

func NewService(provider store.Provider, repo *Repository) *Service {
	return &Service{provider: provider, repo: repo}
}

func (s *Service) Repository() *Repository {
	return s.repo
}

// Selection 读取访客上次保存的筛选，失败时返回默认值
func (s *Service) Selection(ctx context.Context, userID string) FilterSelection {
	blob, ok, err := s.provider.ForUser(userID).Get(ctx, store.KeyBookFilter)
	if err != nil {
		logger.Errorf("读取访客 %s 的筛选偏好失败: %v", userID, err)
		return DefaultSelection()
	}
	if !ok {
		return DefaultSelection()
	}
	var sel FilterSelection
	if err := json.Unmarshal(blob, &sel); err != nil {
		logger.Warnf("筛选偏好数据损坏，使用默认值: %v", err)
		return DefaultSelection()
	}
	return sel.Normalize()
}

// SaveSelection 保存访客的筛选，失败只记录日志
func (s *Service) SaveSelection(ctx context.Context, userID string, sel FilterSelection) {
	blob, err := json.Marshal(sel.Normalize())
	if err == nil {
		err = s.provider.ForUser(userID).Set(ctx, store.KeyBookFilter, blob)
	}
	if err != nil {
		logger.Errorf("保存访客 %s 的筛选偏好失败: %v", userID, err)
	}
}

// Clear 重置筛选并删除保存的偏好
func (s *Service) Clear(ctx context.Context, userID string) FilterSelection {
	if err := s.provider.ForUser(userID).Delete(ctx, store.KeyBookFilter); err != nil {
		logger.Errorf("清除访客 %s 的筛选偏好失败: %v", userID, err)
	}
	return DefaultSelection()
}

// Sorted 返回按选择排序后的全部书目，筛选由调用方决定如何呈现
func (s *Service) Sorted(sel FilterSelection) []ItemView {
	items := s.repo.Items()
	SortItems(items, sel.Sort)
	return items
}

// RandomURL 返回随机一本书的页面地址
func (s *Service) RandomURL() (string, error) {
	it, err := s.repo.Random()
	if err != nil {
		return "", err
	}
	return it.URL(), nil
}
