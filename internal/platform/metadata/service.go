package metadata

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Generic Accessors ---

// GetValue 读取元数据，键不存在时返回空字符串
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue 以 upsert 的方式写入元数据
func SetValue(db *gorm.DB, key, value string) error {
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&meta).Error
}

// --- Specific Helpers for Type Conversion ---

// GetTime 读取时间类型的元数据，不存在时返回零值
func GetTime(db *gorm.DB, key string) (time.Time, error) {
	valueStr, err := GetValue(db, key)
	if err != nil || valueStr == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析元数据 '%s' 的值: %w", key, err)
	}
	return t, nil
}

// SetTime 写入时间类型的元数据
func SetTime(db *gorm.DB, key string, t time.Time) error {
	return SetValue(db, key, t.UTC().Format(time.RFC3339Nano))
}

// GetLastSnapshotAt 返回最近一次进度快照的时间
func GetLastSnapshotAt(db *gorm.DB) (time.Time, error) {
	return GetTime(db, LastSnapshotAtKey)
}

// RecordSnapshot 在同一事务中记录快照时间和写入的访客数量
func RecordSnapshot(tx *gorm.DB, at time.Time, users int) error {
	if err := SetTime(tx, LastSnapshotAtKey, at); err != nil {
		return err
	}
	return SetValue(tx, SnapshotUsersKey, strconv.Itoa(users))
}

// GetSnapshotUsers 返回最近一次快照写入的访客数量
func GetSnapshotUsers(db *gorm.DB) (int, error) {
	valueStr, err := GetValue(db, SnapshotUsersKey)
	if err != nil || valueStr == "" {
		return 0, err
	}
	n, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", SnapshotUsersKey, err)
	}
	return n, nil
}
