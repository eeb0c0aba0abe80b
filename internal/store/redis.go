package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// --- Redis 键名常量 ---

const (
	// progressKeyPrefix 是每个访客的 Redis Hash 键前缀。
	// Key: progress:<UUID>
	// Field: bookmarks / userStats / bookFilter
	// Value: JSON文本
	progressKeyPrefix = "progress:"

	// DirtySetKey 是一个 Redis Set，存储自上次快照以来数据发生变化的访客UUID。用于增量备份。
	DirtySetKey = "progress:dirty"

	// ProcessingDirtySetKey 只在备份逻辑中被使用
	ProcessingDirtySetKey = "progress:dirty:processing"
)

// ProgressKey 返回访客对应的Hash键名
func ProgressKey(userID string) string {
	return progressKeyPrefix + userID
}

// RedisProvider 把每个访客的存储映射为一个 Redis Hash。
type RedisProvider struct {
	rdb *redis.Client
}

func NewRedisProvider(rdb *redis.Client) *RedisProvider {
	return &RedisProvider{rdb: rdb}
}

func (p *RedisProvider) ForUser(userID string) Store {
	return &redisStore{rdb: p.rdb, userID: userID}
}

type redisStore struct {
	rdb    *redis.Client
	userID string
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.userID == "" {
		return nil, false, ErrEmptyUserID
	}
	v, err := s.rdb.HGet(ctx, ProgressKey(s.userID), key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("无法从Redis读取 %s: %w", key, err)
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany 在一个事务(TxPipeline)中写入所有字段，并把访客标记为脏数据
func (s *redisStore) SetMany(ctx context.Context, values map[string][]byte) error {
	if s.userID == "" {
		return ErrEmptyUserID
	}
	if len(values) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, len(values)*2)
	for k, v := range values {
		fields = append(fields, k, v)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, ProgressKey(s.userID), fields...)
	pipe.SAdd(ctx, DirtySetKey, s.userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入访客 %s 的数据失败: %w", s.userID, err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if s.userID == "" {
		return ErrEmptyUserID
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.HDel(ctx, ProgressKey(s.userID), keys...)
	pipe.SAdd(ctx, DirtySetKey, s.userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除访客 %s 的数据失败: %w", s.userID, err)
	}
	return nil
}
