package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Snapshot 是访客存储在SQLite中的持久化快照，每个 (访客, 键) 一行。
// 删除的键以空 Value 表示，便于增量覆盖。
type Snapshot struct {
	UserID    string `gorm:"primaryKey;type:varchar(36)"`
	Key       string `gorm:"primaryKey;type:varchar(32)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// MigrateDB 负责自动迁移快照表结构
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Snapshot{}); err != nil {
		return fmt.Errorf("无法迁移progress快照表: %w", err)
	}
	return nil
}

// CollectSnapshots 读取一批访客在Redis中的完整数据，转为快照行
func CollectSnapshots(ctx context.Context, rdb *redis.Client, userIDs []string) ([]Snapshot, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	pipe := rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, ProgressKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("批量读取访客数据失败: %w", err)
	}

	now := time.Now()
	rows := make([]Snapshot, 0, len(userIDs)*2)
	for i, id := range userIDs {
		fields := cmds[i].Val()
		for _, key := range []string{KeyBookmarks, KeyUserStats, KeyBookFilter} {
			rows = append(rows, Snapshot{UserID: id, Key: key, Value: fields[key], UpdatedAt: now})
		}
	}
	return rows, nil
}

// UpsertSnapshots 在给定事务中写入快照行
func UpsertSnapshots(tx *gorm.DB, rows []Snapshot) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).CreateInBatches(&rows, 500).Error
}

// WarmupCache 从SQLite快照恢复所有访客的数据到Redis
func WarmupCache(ctx context.Context, db *gorm.DB, rdb *redis.Client) (int, error) {
	var rows []Snapshot
	if err := db.Where("value <> ?", "").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("无法从SQLite读取访客快照: %w", err)
	}

	users := make(map[string][]interface{})
	for _, r := range rows {
		users[r.UserID] = append(users[r.UserID], r.Key, r.Value)
	}

	pipe := rdb.Pipeline()
	for id, fields := range users {
		pipe.Del(ctx, ProgressKey(id))
		pipe.HSet(ctx, ProgressKey(id), fields...)
	}
	pipe.Del(ctx, DirtySetKey, ProcessingDirtySetKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("预热访客数据到Redis失败: %w", err)
	}
	return len(users), nil
}

// LoadAll 从SQLite快照读取所有访客的数据，用于无Redis时的内存模式
func LoadAll(ctx context.Context, db *gorm.DB, p *MemoryProvider) (int, error) {
	var rows []Snapshot
	if err := db.WithContext(ctx).Where("value <> ?", "").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("无法从SQLite读取访客快照: %w", err)
	}
	seen := make(map[string]struct{})
	for _, r := range rows {
		if err := p.ForUser(r.UserID).Set(ctx, r.Key, []byte(r.Value)); err != nil {
			return 0, err
		}
		seen[r.UserID] = struct{}{}
	}
	return len(seen), nil
}
