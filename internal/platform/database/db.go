package database

import (
	"fmt"
	"log"
	"os"

	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 是本地SQLite数据库，保存书目、用户、快照和投稿
var DB *gorm.DB

// ViewsDB 是浏览计数所在的数据库。
// 配置了托管Postgres时指向它，否则与DB相同。
var ViewsDB *gorm.DB

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: 0,
			LogLevel:      gormlogger.Silent, // 在生产环境中可以设为Silent
			Colorful:      true,
		},
	)
}

// OpenSQLite 打开一个SQLite数据库，测试中可传入 ":memory:"
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(),
	})
	if err != nil {
		return nil, err
	}
	// 内存数据库的每个连接都是独立的库，必须限制为单连接
	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// InitDB 初始化数据库连接
func InitDB(cfg config.DatabaseConfig) {
	var err error

	DB, err = OpenSQLite(cfg.Sqlite.Path)
	if err != nil {
		logger.Errorf("连接数据库失败: %v", err)
		panic(err)
	}
	logger.Infof("数据库连接成功！(%s)", cfg.Sqlite.Path)

	ViewsDB = DB
	if cfg.Postgres.DSN != "" {
		ViewsDB, err = gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
			Logger: newGormLogger(),
		})
		if err != nil {
			panic(fmt.Sprintf("无法连接到Postgres: %v", err))
		}
		logger.Infof("Postgres 连接成功，浏览计数将写入托管数据库。")
	}
}
