package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// AggregatesKey 是一个 Redis Hash，存储每本书的评分聚合
// Field: 书目slug
// Value: Aggregate 的JSON
const AggregatesKey = "book_ratings"

const maxWatchRetries = 10

var ErrTooMuchContention = errors.New("评分更新冲突过多，请稍后重试")

// Aggregate 是一本书的评分聚合，平均分 = Sum / Count。
// Version 在每次 Add 时加一，用于判断两个聚合谁更新。
type Aggregate struct {
	Sum     float64 `json:"sum"`
	Count   int     `json:"count"`
	Version int64   `json:"version"`
}

func (a Aggregate) Average() float64 {
	if a.Count <= 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// AggregateStore 保存所有书的评分聚合
type AggregateStore interface {
	// Add 原子地把增量加到聚合上，返回新的聚合
	Add(ctx context.Context, slug string, dSum float64, dCount int) (Aggregate, error)
	All(ctx context.Context) (map[string]Aggregate, error)
	// Load 用给定数据整体替换聚合
	Load(ctx context.Context, all map[string]Aggregate) error
}

// Compensator 封装了一次聚合增量的回滚逻辑。
// 它应当在业务流程失败时通过defer语句执行补偿。
type Compensator struct {
	store     AggregateStore
	repo      *catalog.Repository
	slug      string
	dSum      float64
	dCount    int
	committed bool
}

// Commit 标记上层业务已成功，阻止后续的回滚操作。
func (c *Compensator) Commit() {
	c.committed = true
}

// RollbackUnlessCommitted 如果没有调用 Commit，则撤销之前的增量。
func (c *Compensator) RollbackUnlessCommitted(ctx context.Context) {
	if c == nil || c.committed {
		return
	}
	a, err := c.store.Add(ctx, c.slug, -c.dSum, -c.dCount)
	if err != nil {
		logger.Errorf("严重警告: 评分聚合补偿操作失败! 书目: %s, 错误: %v", c.slug, err)
		return
	}
	if c.repo != nil {
		c.repo.ApplyRating(c.slug, a.Average(), a.Count, a.Version)
	}
}

// --- 内存实现 ---

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Aggregate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Aggregate)}
}

func (m *MemoryStore) Add(_ context.Context, slug string, dSum float64, dCount int) (Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.data[slug]
	a.Sum += dSum
	a.Count += dCount
	a.Version++
	m.data[slug] = a
	return a, nil
}

func (m *MemoryStore) All(context.Context) (map[string]Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Aggregate, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Load(_ context.Context, all map[string]Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]Aggregate, len(all))
	for k, v := range all {
		m.data[k] = v
	}
	return nil
}

// --- Redis实现 ---

type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Add 使用WATCH乐观事务更新聚合，冲突时重试
func (r *RedisStore) Add(ctx context.Context, slug string, dSum float64, dCount int) (Aggregate, error) {
	var result Aggregate
	txf := func(tx *redis.Tx) error {
		var a Aggregate
		raw, err := tx.HGet(ctx, AggregatesKey, slug).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("无法从Redis获取评分聚合: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				logger.Warnf("书目 %s 的评分聚合数据损坏，重新计数: %v", slug, err)
				a = Aggregate{}
			}
		}
		a.Sum += dSum
		a.Count += dCount
		a.Version++

		blob, _ := json.Marshal(a)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, AggregatesKey, slug, blob)
			return nil
		})
		if err == nil {
			result = a
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.rdb.Watch(ctx, txf, AggregatesKey)
		if err == nil {
			return result, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return Aggregate{}, err
	}
	return Aggregate{}, ErrTooMuchContention
}

func (r *RedisStore) All(ctx context.Context) (map[string]Aggregate, error) {
	raw, err := r.rdb.HGetAll(ctx, AggregatesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("无法从Redis读取评分聚合: %w", err)
	}
	out := make(map[string]Aggregate, len(raw))
	for slug, blob := range raw {
		var a Aggregate
		if err := json.Unmarshal([]byte(blob), &a); err != nil {
			logger.Warnf("跳过损坏的评分聚合 %s: %v", slug, err)
			continue
		}
		out[slug] = a
	}
	return out, nil
}

func (r *RedisStore) Load(ctx context.Context, all map[string]Aggregate) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, AggregatesKey)
	if len(all) > 0 {
		fields := make([]interface{}, 0, len(all)*2)
		for slug, a := range all {
			blob, _ := json.Marshal(a)
			fields = append(fields, slug, blob)
		}
		pipe.HSet(ctx, AggregatesKey, fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("预热评分聚合到Redis失败: %w", err)
	}
	return nil
}
