package user

import (
	"fmt"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// MigrateDB 负责自动迁移数据库表结构
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("无法迁移user表: %w", err)
	}
	return nil
}

// WarmupCache 从SQLite加载所有已知访客和昵称到内存仓库
func WarmupCache() error {
	var users []User
	if err := database.DB.Select("uuid", "username").Find(&users).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取访客: %w", err)
	}
	globalRepository.reset(users)
	logger.Infof("成功加载 %d 个访客到内存仓库。", len(users))
	return nil
}

// PrimeCachedDB 是user模块的初始化总入口
func PrimeCachedDB() error {
	if err := MigrateDB(database.DB); err != nil {
		return err
	}
	logger.Infof("User数据库表迁移成功。")
	return WarmupCache()
}
