package database

import (
	"context"

	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// RDB 是一个全局的Redis客户端实例，供项目其他部分使用
// 未配置Redis时为nil，各模块退化为进程内存储
var RDB *redis.Client

// Ctx 是一个全局的上下文，用于后台Redis操作
var Ctx = context.Background()

// InitRedis 初始化与Redis数据库的连接
func InitRedis(cfg config.RedisConfig) {
	if cfg.Address == "" {
		logger.Warnf("未配置Redis地址，将使用进程内存储。")
		return
	}

	RDB = redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 使用Ping命令来测试连接是否成功
	_, err := RDB.Ping(Ctx).Result()
	if err != nil {
		panic("无法连接到Redis: " + err.Error())
	}

	logger.Infof("Redis 连接成功！")
}

// RedisEnabled 判断当前是否运行在Redis模式
func RedisEnabled() bool {
	return RDB != nil
}
