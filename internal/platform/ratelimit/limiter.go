package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// keyPrefix 是Redis中每个IP的有序集合键名前缀
// Key: ratelimit:<scope>:<IP>，Score: 微秒时间戳，Member: 唯一ID
const keyPrefix = "ratelimit:"

var ErrInvalidIP = errors.New("请求IP无效")

// Limiter 统计一个IP在滑动时间窗口内的请求次数
type Limiter interface {
	// Hit 记录一次请求，返回窗口内的总次数和一个补偿句柄。返回error时补偿句柄为nil。
	Hit(ctx context.Context, ip string, at time.Time) (int64, *Compensator, error)
}

// Compensator 封装了一次计数增加的回滚逻辑，在业务流程失败时通过defer执行。
type Compensator struct {
	undo      func(ctx context.Context) error
	committed bool
}

// Commit 标记上层业务已成功，阻止后续的回滚操作。
func (c *Compensator) Commit() {
	c.committed = true
}

// RollbackUnlessCommitted 如果没有调用 Commit，则撤销本次计数
func (c *Compensator) RollbackUnlessCommitted(ctx context.Context) {
	if c == nil || c.committed || c.undo == nil {
		return
	}
	if err := c.undo(ctx); err != nil {
		logger.Errorf("严重警告: 请求计数补偿操作失败: %v", err)
	}
}

// generateUniqueID 根据给定的时间生成一个16字节的、抗冲突的ID，并将其编码为Base64字符串。
// 结构: [ 8字节纳秒时间戳 (Big Endian) | 8字节随机数 ]
func generateUniqueID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validIP(ip string) bool {
	return ip != "" && net.ParseIP(ip) != nil
}

// --- Redis实现 ---

type RedisLimiter struct {
	rdb    *redis.Client
	scope  string
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, scope string, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, scope: scope, window: window}
}

func (l *RedisLimiter) key(ip string) string {
	return keyPrefix + l.scope + ":" + ip
}

func (l *RedisLimiter) Hit(ctx context.Context, ip string, at time.Time) (int64, *Compensator, error) {
	if !validIP(ip) {
		return 0, nil, ErrInvalidIP
	}
	key := l.key(ip)
	// 1. 计算窗口起点的时间戳，作为清理的边界
	minTimestamp := float64(at.Add(-l.window).UnixMicro())

	// 2. 生成本次请求的Score和Member
	memberID, err := generateUniqueID(at)
	if err != nil {
		return 0, nil, fmt.Errorf("生成 memberID 失败: %w", err)
	}

	// 3. 使用Redis事务(TxPipeline)来保证所有操作的原子性
	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%f", minTimestamp))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMicro()), Member: memberID})
	// 过期时间比窗口稍长以作缓冲
	pipe.Expire(ctx, key, l.window+time.Hour)
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, nil, fmt.Errorf("执行IP计数事务失败: %w", err)
	}

	undo := func(ctx context.Context) error {
		return l.rdb.ZRem(ctx, key, memberID).Err()
	}
	count, err := countCmd.Result()
	if err != nil {
		_ = undo(ctx)
		return 0, nil, fmt.Errorf("获取IP计数结果失败: %w", err)
	}
	return count, &Compensator{undo: undo}, nil
}

// --- 内存实现 ---

type MemoryLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
}

func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{window: window, hits: make(map[string][]time.Time)}
}

func (l *MemoryLimiter) Hit(_ context.Context, ip string, at time.Time) (int64, *Compensator, error) {
	if !validIP(ip) {
		return 0, nil, ErrInvalidIP
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := at.Add(-l.window)
	if at.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = at
	}
	kept := prune(l.hits[ip], cutoff)
	kept = append(kept, at)
	l.hits[ip] = kept

	undo := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		list := l.hits[ip]
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].Equal(at) {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(l.hits, ip)
		} else {
			l.hits[ip] = list
		}
		return nil
	}
	return int64(len(kept)), &Compensator{undo: undo}, nil
}

// sweep 删除窗口内已经没有记录的IP，调用方需持有锁
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for ip, list := range l.hits {
		if kept := prune(list, cutoff); len(kept) > 0 {
			l.hits[ip] = kept
		} else {
			delete(l.hits, ip)
		}
	}
}

// prune 原地保留不早于 cutoff 的记录
func prune(list []time.Time, cutoff time.Time) []time.Time {
	kept := list[:0]
	for _, t := range list {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
