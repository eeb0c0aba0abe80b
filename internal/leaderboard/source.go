package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/SlpAus/book-summaries-backend/internal/platform/supabase"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
	"github.com/redis/go-redis/v9"
)

// Source 提供按积分降序排列的前 limit 名
type Source interface {
	Top(ctx context.Context, limit int) ([]Entry, error)
}

// --- 托管REST来源 ---

// SupabaseSource 读取托管后端的 user_points 表
type SupabaseSource struct {
	client *supabase.Client
}

func NewSupabaseSource(client *supabase.Client) *SupabaseSource {
	return &SupabaseSource{client: client}
}

func (s *SupabaseSource) Top(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.client == nil {
		return nil, supabase.ErrNotConfigured
	}
	var rows []Entry
	query := url.Values{
		"order": {"points.desc"},
		"limit": {strconv.Itoa(limit)},
	}
	if err := s.client.Select(ctx, "user_points", query, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// --- 本地来源 ---

// Redis键
const (
	// PointsKey 是一个 Sorted Set，Member: 访客UUID，Score: 积分
	PointsKey = "leaderboard:points"
	// EntriesKey 是一个 Hash，Field: 访客UUID，Value: 排行榜行的JSON
	EntriesKey = "leaderboard:entries"
)

// NameFunc 根据访客UUID查询昵称
type NameFunc func(userID string) string

// Ranking 保存本地访客的积分排行
type Ranking interface {
	Record(ctx context.Context, userID string, e Entry) error
	Top(ctx context.Context, limit int) (ids []string, entries []Entry, err error)
}

// LocalSource 由进度回调喂入数据，昵称在读取时解析，改名可以立即生效
type LocalSource struct {
	ranking Ranking
	names   NameFunc
}

func NewLocalSource(r Ranking, names NameFunc) *LocalSource {
	return &LocalSource{ranking: r, names: names}
}

// OnStatsChanged 实现 stats.Hook，在访客进度变化后更新排行
func (s *LocalSource) OnStatsChanged(ctx context.Context, userID string, st stats.UserStats) error {
	return s.ranking.Record(ctx, userID, Entry{
		BooksRead: st.BooksRead,
		Points:    st.Points,
		Badges:    stats.ComputeBadges(st),
	})
}

func (s *LocalSource) Top(ctx context.Context, limit int) ([]Entry, error) {
	ids, entries, err := s.ranking.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	if s.names != nil {
		for i := range entries {
			entries[i].Username = s.names(ids[i])
		}
	}
	return entries, nil
}

type RedisRanking struct {
	rdb *redis.Client
}

func NewRedisRanking(rdb *redis.Client) *RedisRanking {
	return &RedisRanking{rdb: rdb}
}

func (r *RedisRanking) Record(ctx context.Context, userID string, e Entry) error {
	blob, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.ZAdd(ctx, PointsKey, redis.Z{Score: float64(e.Points), Member: userID})
	pipe.HSet(ctx, EntriesKey, userID, blob)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("更新排行榜失败: %w", err)
	}
	return nil
}

func (r *RedisRanking) Top(ctx context.Context, limit int) ([]string, []Entry, error) {
	ids, err := r.rdb.ZRevRange(ctx, PointsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("读取排行榜失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	vals, err := r.rdb.HMGet(ctx, EntriesKey, ids...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("读取排行榜明细失败: %w", err)
	}

	outIDs := make([]string, 0, len(ids))
	entries := make([]Entry, 0, len(ids))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		outIDs = append(outIDs, ids[i])
		entries = append(entries, e)
	}
	return outIDs, entries, nil
}

type MemoryRanking struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryRanking() *MemoryRanking {
	return &MemoryRanking{entries: make(map[string]Entry)}
}

func (m *MemoryRanking) Record(_ context.Context, userID string, e Entry) error {
	m.mu.Lock()
	m.entries[userID] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryRanking) Top(_ context.Context, limit int) ([]string, []Entry, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	snapshot := make(map[string]Entry, len(m.entries))
	for id, e := range m.entries {
		snapshot[id] = e
	}
	m.mu.RUnlock()

	// 与 ZREVRANGE 一致：积分降序，同分按成员降序
	slices.SortFunc(ids, func(a, b string) int {
		if d := snapshot[b].Points - snapshot[a].Points; d != 0 {
			return d
		}
		return strings.Compare(b, a)
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	entries := make([]Entry, len(ids))
	for i, id := range ids {
		entries[i] = snapshot[id]
	}
	return ids, entries, nil
}
