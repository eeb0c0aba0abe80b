package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/platform/metadata"
	"github.com/SlpAus/book-summaries-backend/internal/rating"
	"github.com/SlpAus/book-summaries-backend/internal/store"
	"github.com/SlpAus/book-summaries-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultInterval = 10 * time.Minute // 默认定时备份频率

// Snapshotter 把热存储中的访客进度和评分聚合持久化到SQLite。
// rdb 不为空时按脏集合做增量快照，否则整体导出内存存储。
type Snapshotter struct {
	mu      sync.Mutex // 避免意外竞态
	db      *gorm.DB
	rdb     *redis.Client
	memory  *store.MemoryProvider
	ratings rating.AggregateStore
}

func NewRedisSnapshotter(db *gorm.DB, rdb *redis.Client, ratings rating.AggregateStore) *Snapshotter {
	return &Snapshotter{db: db, rdb: rdb, ratings: ratings}
}

func NewMemorySnapshotter(db *gorm.DB, memory *store.MemoryProvider, ratings rating.AggregateStore) *Snapshotter {
	return &Snapshotter{db: db, memory: memory, ratings: ratings}
}

// StartBackupScheduler 启动一个后台Goroutine来定期执行数据库备份
// 它接收一个lifecycle.Handle来管理其生命周期
func StartBackupScheduler(handle *lifecycle.Handle, s *Snapshotter, interval time.Duration) {
	defer handle.Close() // 确保在退出时通知管理器
	if interval <= 0 {
		interval = defaultInterval
	}
	logger.Infof("进度快照调度器已启动，间隔 %s。", interval)

	for {
		// 使用可中断的休眠来代替ticker。
		// 这使得整个循环可以在收到停机信号时立刻从休眠中唤醒并退出。
		if err := handle.Sleep(interval); err != nil {
			logger.Infof("备份调度器: 休眠被中断，正在关闭...")
			return
		}

		if s.rdb != nil && !database.IsRedisHealthy() {
			logger.Warnf("备份调度器: 检测到Redis不可用，跳过本次备份。")
			continue
		}

		users, err := s.CreateConsistentSnapshotInDB(handle.Ctx())
		if err != nil {
			// 如果错误是由于停机信号导致的，则静默退出
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Errorf("备份调度器错误: 执行快照备份失败: %v", err)
			}
			continue
		}
		if users > 0 {
			logger.Infof("备份调度器: 快照备份成功，写入 %d 位访客。", users)
		}
	}
}

// CreateConsistentSnapshotInDB 执行一次快照备份，返回写入的访客数
func (s *Snapshotter) CreateConsistentSnapshotInDB(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rdb == nil {
		return s.snapshotMemory(ctx)
	}
	return s.snapshotRedis(ctx)
}

func (s *Snapshotter) snapshotMemory(ctx context.Context) (int, error) {
	if s.memory == nil {
		return 0, nil
	}
	rows := s.memory.Dump()
	users := len(s.memory.Users())
	aggregates, err := s.ratings.All(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.persist(ctx, rows, aggregates, users); err != nil {
		return 0, err
	}
	return users, nil
}

func (s *Snapshotter) snapshotRedis(ctx context.Context) (users int, err error) {
	var dirtyUserIDs []string

	transferred, err := func() (bool, error) {
		dirtySetExists, err := s.rdb.Exists(ctx, store.DirtySetKey).Result()
		if err != nil {
			return false, fmt.Errorf("无法检查Redis中 DirtySetKey 是否存在: %w", err)
		}
		// 无需备份
		if dirtySetExists == 0 {
			return false, nil
		}

		// 1. 使用原子事务(TxPipeline)取出脏集合并转移到处理中集合
		pipe := s.rdb.TxPipeline()
		dirtyUserIDsCmd := pipe.SMembers(ctx, store.DirtySetKey)
		pipe.Rename(ctx, store.DirtySetKey, store.ProcessingDirtySetKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("无法从Redis原子地获取脏集合: %w", err)
		}
		// TxPipeline 成功后，transferred为true，代表 DirtySetKey 已被消费

		dirtyUserIDs, err = dirtyUserIDsCmd.Result()
		if err != nil {
			return true, fmt.Errorf("获取 dirtyUserIDs 的结果时失败: %w", err)
		}
		return true, nil
	}()

	if transferred {
		defer func() {
			// 使用独立的context，保证停机时也能完成补偿
			cleanupCtx := context.WithoutCancel(ctx)
			if err != nil {
				pipe := s.rdb.TxPipeline()
				pipe.SUnionStore(cleanupCtx, store.DirtySetKey, store.DirtySetKey, store.ProcessingDirtySetKey)
				pipe.Del(cleanupCtx, store.ProcessingDirtySetKey)
				if _, rerr := pipe.Exec(cleanupCtx); rerr != nil {
					logger.Errorf("严重警告: 恢复脏集合失败: %v", rerr)
				}
			} else {
				s.rdb.Del(cleanupCtx, store.ProcessingDirtySetKey)
			}
		}()
	}

	if err != nil || !transferred || len(dirtyUserIDs) == 0 {
		return 0, err
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	// 2. 准备将写入SQLite的数据
	rows, err := store.CollectSnapshots(ctx, s.rdb, dirtyUserIDs)
	if err != nil {
		return 0, err
	}
	aggregates, err := s.ratings.All(ctx)
	if err != nil {
		return 0, err
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	// 3. 将快照数据持久化到SQLite
	if err := s.persist(ctx, rows, aggregates, len(dirtyUserIDs)); err != nil {
		return 0, err
	}
	return len(dirtyUserIDs), nil
}

func (s *Snapshotter) persist(ctx context.Context, rows []store.Snapshot, aggregates map[string]rating.Aggregate, users int) error {
	const maxRetry = 3
	const delay = 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetry; i++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// a. 持久化访客进度
			if err := store.UpsertSnapshots(tx, rows); err != nil {
				return fmt.Errorf("批量写入访客快照失败: %w", err)
			}
			// b. 持久化评分聚合
			if err := rating.PersistAggregates(tx, aggregates); err != nil {
				return err
			}
			// c. 更新metadata模块的元数据
			if err := metadata.RecordSnapshot(tx, time.Now(), users); err != nil {
				return fmt.Errorf("更新快照元数据失败: %w", err)
			}
			return nil
		})

		if err == nil || !database.IsRetryableError(err) {
			break
		}
		time.Sleep(delay)
	}
	return err
}
