package user

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了访客在SQLite数据库中的持久化模型。
// 访客第一次产生进度时才会写入这张表。
type User struct {
	// UUID 是访客的主键，来自客户端Cookie。
	UUID string `gorm:"primarykey;type:varchar(36)"`

	// Username 是访客自选的昵称，用于排行榜展示，可以为空
	Username string `gorm:"type:varchar(64)"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
