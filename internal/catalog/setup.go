package catalog

import (
	"fmt"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// PrimeCachedDB 负责初始化catalog模块的数据库和内存仓库
func PrimeCachedDB() error {
	// 1. 迁移数据库表结构
	if err := MigrateDB(database.DB); err != nil {
		return err
	}
	logger.Infof("Book数据库表迁移成功。")
	// 2. 从数据库加载书目到内存仓库
	if err := globalRepository.LoadFromDB(database.DB); err != nil {
		return err
	}
	if globalRepository.Len() == 0 {
		logger.Warnf("书目为空，请先运行 importcatalog 导入内容。")
	}
	return nil
}

// MigrateDB 负责自动迁移数据库表结构
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Book{}); err != nil {
		return fmt.Errorf("无法迁移book表: %w", err)
	}
	return nil
}
