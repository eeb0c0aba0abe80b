package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/store"
)

var (
	ErrInvalidAmount   = errors.New("积分必须为正数")
	ErrInvalidActivity = errors.New("未知的积分行为")
	ErrEmptySlug       = errors.New("书目标识为空")
)

// Hook 在访客进度成功写入后被调用，例如更新本地排行榜
type Hook interface {
	OnStatsChanged(ctx context.Context, userID string, s UserStats) error
}

// HookFunc 让普通函数满足 Hook 接口
type HookFunc func(ctx context.Context, userID string, s UserStats) error

func (f HookFunc) OnStatsChanged(ctx context.Context, userID string, s UserStats) error {
	return f(ctx, userID, s)
}

// Service 拥有 userStats 和 bookmarks 两个键，所有修改都经过 Mutate
type Service struct {
	provider store.Provider
	locks    *keyedMutex
	hooks    []Hook
}

func NewService(provider store.Provider) *Service {
	return &Service{provider: provider, locks: newKeyedMutex()}
}

// AddHook 注册一个进度变化的回调，应在启动阶段调用
func (s *Service) AddHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

// GetStats 读取访客进度，读取失败或数据损坏时返回默认值
func (s *Service) GetStats(ctx context.Context, userID string) UserStats {
	st, err := s.loadStats(ctx, s.provider.ForUser(userID))
	if err != nil {
		logger.Errorf("读取访客 %s 的进度失败: %v", userID, err)
		return DefaultStats()
	}
	return st
}

// SaveStats 直接覆盖访客进度，失败只记录日志
func (s *Service) SaveStats(ctx context.Context, userID string, st UserStats) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	st.normalize()
	blob, err := json.Marshal(st)
	if err == nil {
		err = s.provider.ForUser(userID).Set(ctx, store.KeyUserStats, blob)
	}
	if err != nil {
		logger.Errorf("保存访客 %s 的进度失败: %v", userID, err)
		return
	}
	s.notify(ctx, userID, st)
}

// GetState 读取访客的进度与当前收藏集合
func (s *Service) GetState(ctx context.Context, userID string) State {
	kv := s.provider.ForUser(userID)
	st, err := s.loadStats(ctx, kv)
	if err != nil {
		logger.Errorf("读取访客 %s 的进度失败: %v", userID, err)
		st = DefaultStats()
	}
	bm, err := loadBookmarks(ctx, kv)
	if err != nil {
		logger.Errorf("读取访客 %s 的收藏失败: %v", userID, err)
		bm = []string{}
	}
	return State{Stats: st, Bookmarks: bm}
}

// Mutate 在访客锁内读取进度和收藏，执行 fn，并把两个键一次性写回。
// fn 返回错误时不写入任何数据。返回修改前后的进度。
func (s *Service) Mutate(ctx context.Context, userID string, fn func(*State) error) (before, after State, err error) {
	if userID == "" {
		return State{}, State{}, store.ErrEmptyUserID
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	kv := s.provider.ForUser(userID)
	st, err := s.loadStats(ctx, kv)
	if err != nil {
		return State{}, State{}, err
	}
	bm, err := loadBookmarks(ctx, kv)
	if err != nil {
		return State{}, State{}, err
	}

	before = State{Stats: st.Clone(), Bookmarks: append([]string{}, bm...)}
	after = State{Stats: st, Bookmarks: bm}
	if err := fn(&after); err != nil {
		return State{}, State{}, err
	}
	after.Stats.normalize()
	if after.Bookmarks == nil {
		after.Bookmarks = []string{}
	}

	statsBlob, err := json.Marshal(after.Stats)
	if err != nil {
		return State{}, State{}, fmt.Errorf("序列化进度失败: %w", err)
	}
	bmBlob, err := json.Marshal(after.Bookmarks)
	if err != nil {
		return State{}, State{}, fmt.Errorf("序列化收藏失败: %w", err)
	}
	if err := kv.SetMany(ctx, map[string][]byte{
		store.KeyUserStats: statsBlob,
		store.KeyBookmarks: bmBlob,
	}); err != nil {
		return State{}, State{}, err
	}

	s.notify(ctx, userID, after.Stats)
	return before, after, nil
}

// AwardPoints 为访客增加积分并累加行为计数，返回刷新后的面板数据。
// 幂等性由调用方负责。
func (s *Service) AwardPoints(ctx context.Context, userID string, amount int, activity Activity) (Progress, error) {
	if amount <= 0 {
		return Progress{}, ErrInvalidAmount
	}
	switch activity {
	case ActivityRead, ActivityBookmark, ActivityRate:
	default:
		return Progress{}, ErrInvalidActivity
	}
	_, after, err := s.Mutate(ctx, userID, func(st *State) error {
		ApplyAward(&st.Stats, amount, activity)
		return nil
	})
	if err != nil {
		return Progress{}, err
	}
	return Project(after.Stats), nil
}

// ReadResult 是切换阅读状态的结果
type ReadResult struct {
	Slug         string   `json:"slug"`
	Read         bool     `json:"read"`
	Notification string   `json:"notification,omitempty"`
	NewBadges    []Badge  `json:"newBadges"`
	Progress     Progress `json:"progress"`
}

// ToggleReadStatus 切换一本书的已读状态：标记已读 +10 分，取消已读 -10 分（不低于0）
func (s *Service) ToggleReadStatus(ctx context.Context, userID, slug string) (ReadResult, error) {
	if slug == "" {
		return ReadResult{}, ErrEmptySlug
	}
	var read bool
	before, after, err := s.Mutate(ctx, userID, func(st *State) error {
		read = ToggleRead(&st.Stats, slug)
		return nil
	})
	if err != nil {
		return ReadResult{}, err
	}

	res := ReadResult{
		Slug:      slug,
		Read:      read,
		NewBadges: []Badge{},
		Progress:  Project(after.Stats),
	}
	if read {
		if earned := NewBadges(before.Stats, after.Stats); len(earned) > 0 {
			res.NewBadges = earned
		}
		res.Notification = ReadNotification(res.NewBadges)
	}
	return res, nil
}

func (s *Service) notify(ctx context.Context, userID string, st UserStats) {
	for _, h := range s.hooks {
		if err := h.OnStatsChanged(ctx, userID, st); err != nil {
			logger.Warnf("进度回调失败 (访客 %s): %v", userID, err)
		}
	}
}

func (s *Service) loadStats(ctx context.Context, kv store.Store) (UserStats, error) {
	blob, ok, err := kv.Get(ctx, store.KeyUserStats)
	if err != nil {
		return UserStats{}, err
	}
	if !ok {
		return DefaultStats(), nil
	}
	var st UserStats
	if err := json.Unmarshal(blob, &st); err != nil {
		logger.Warnf("访客进度数据损坏，使用默认值: %v", err)
		return DefaultStats(), nil
	}
	st.normalize()
	return st, nil
}

func loadBookmarks(ctx context.Context, kv store.Store) ([]string, error) {
	blob, ok, err := kv.Get(ctx, store.KeyBookmarks)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	var bm []string
	if err := json.Unmarshal(blob, &bm); err != nil {
		logger.Warnf("访客收藏数据损坏，使用空集合: %v", err)
		return []string{}, nil
	}
	if bm == nil {
		bm = []string{}
	}
	return bm, nil
}
