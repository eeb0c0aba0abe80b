package store

import (
	"context"
	"errors"
)

// 每个访客的“本地存储”中使用的键，值均为JSON文本
const (
	KeyBookmarks  = "bookmarks"
	KeyUserStats  = "userStats"
	KeyBookFilter = "bookFilter"
)

// ErrEmptyUserID 表示调用方没有提供访客ID
var ErrEmptyUserID = errors.New("访客ID为空")

// Store 是单个访客的键值存储，语义上对应浏览器的 localStorage。
type Store interface {
	// Get 返回键对应的值，键不存在时 ok 为 false
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany 原子地写入多个键，要么全部成功，要么全部失败
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Provider 按访客ID分发 Store
type Provider interface {
	ForUser(userID string) Store
}
