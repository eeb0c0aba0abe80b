package user

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

const maxUsernameLength = 32

var ErrInvalidUsername = errors.New("昵称不能为空，长度不能超过32个字符，且不能包含控制字符")

// CreateProvisionalUser 生成一个临时的、尚未持久化的新访客UUID。
func CreateProvisionalUser() (string, error) {
	newUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return newUUID.String(), nil
}

// IsValidUUID 检查字符串是否为合法的UUID
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

// IsUserActivated 检查一个UUID是否已经持久化
func IsUserActivated(uuidStr string) bool {
	return uuidStr != "" && globalRepository.isKnown(uuidStr)
}

// ActivateUser 将一个临时的UUID持久化到数据库。重复调用是安全的。
func ActivateUser(uuidStr string) error {
	if !IsValidUUID(uuidStr) {
		return fmt.Errorf("非法的访客ID: %q", uuidStr)
	}
	if IsUserActivated(uuidStr) {
		return nil
	}

	newUser := User{UUID: uuidStr}
	err := database.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&newUser).Error
	if err != nil && !database.IsDuplicateKeyError(err) {
		return fmt.Errorf("无法在SQLite中创建新访客: %w", err)
	}

	globalRepository.mu.Lock()
	globalRepository.known[uuidStr] = struct{}{}
	globalRepository.mu.Unlock()
	return nil
}

// NormalizeUsername 去除首尾空白并校验昵称
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLength {
		return "", ErrInvalidUsername
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ErrInvalidUsername
		}
	}
	return name, nil
}

// SetUsername 为访客设置昵称，必要时先激活访客
func SetUsername(uuidStr, name string) (string, error) {
	name, err := NormalizeUsername(name)
	if err != nil {
		return "", err
	}
	if err := ActivateUser(uuidStr); err != nil {
		return "", err
	}
	if err := database.DB.Model(&User{}).Where("uuid = ?", uuidStr).Update("username", name).Error; err != nil {
		return "", fmt.Errorf("无法更新访客 %s 的昵称: %w", uuidStr, err)
	}
	globalRepository.put(User{UUID: uuidStr, Username: name})
	return name, nil
}

// Username 返回访客的昵称，没有设置时返回空字符串
func Username(uuidStr string) string {
	return globalRepository.username(uuidStr)
}
