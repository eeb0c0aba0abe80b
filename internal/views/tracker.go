package views

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/SlpAus/book-summaries-backend/internal/platform/supabase"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxSlugLength = 200

var (
	ErrInvalidSlug = errors.New("Invalid JSON or missing slug")

	slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)
)

// ValidSlug 判断slug是否可以作为计数键
func ValidSlug(slug string) bool {
	return slug != "" && len(slug) <= maxSlugLength && slugPattern.MatchString(slug)
}

// View 是浏览计数表的一行
type View struct {
	Slug  string `gorm:"primaryKey;type:varchar(200)" json:"slug"`
	Views int64  `gorm:"not null;default:0" json:"views"`
}

func (View) TableName() string { return "views" }

// Tracker 记录书目页面的浏览数。每次调用都会加一，不是幂等的。
type Tracker interface {
	Increment(ctx context.Context, slug string) error
	// Counts 返回所有书目的浏览数，用于启动时加载
	Counts(ctx context.Context) (map[string]int64, error)
}

// --- SQL实现 (SQLite 或托管 Postgres) ---

type SQLTracker struct {
	db *gorm.DB
}

func NewSQLTracker(db *gorm.DB) *SQLTracker {
	return &SQLTracker{db: db}
}

// MigrateDB 负责自动迁移浏览计数表
func (t *SQLTracker) MigrateDB() error {
	if err := t.db.AutoMigrate(&View{}); err != nil {
		return fmt.Errorf("无法迁移views表: %w", err)
	}
	return nil
}

// Increment 以 upsert 的方式为slug加一，不存在时插入 views=1
func (t *SQLTracker) Increment(ctx context.Context, slug string) error {
	row := View{Slug: slug, Views: 1}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"views": gorm.Expr("views.views + 1")}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("更新 %s 的浏览数失败: %w", slug, err)
	}
	return nil
}

func (t *SQLTracker) Counts(ctx context.Context) (map[string]int64, error) {
	var rows []View
	if err := t.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("读取浏览数失败: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Slug] = r.Views
	}
	return out, nil
}

// --- 托管REST实现 ---

// RestTracker 通过 PostgREST 先查询再更新或插入。
// 读与写之间没有事务，并发请求可能丢失计数。
type RestTracker struct {
	client *supabase.Client
}

func NewRestTracker(client *supabase.Client) *RestTracker {
	return &RestTracker{client: client}
}

func (t *RestTracker) Increment(ctx context.Context, slug string) error {
	var rows []View
	if err := t.client.Select(ctx, "views", supabase.Eq("slug", slug), &rows); err != nil {
		return err
	}
	if len(rows) > 0 {
		return t.client.Update(ctx, "views", supabase.Eq("slug", slug), map[string]int64{"views": rows[0].Views + 1})
	}
	return t.client.Insert(ctx, "views", View{Slug: slug, Views: 1})
}

func (t *RestTracker) Counts(ctx context.Context) (map[string]int64, error) {
	var rows []View
	if err := t.client.Select(ctx, "views", url.Values{"select": {"slug,views"}}, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Slug] = r.Views
	}
	return out, nil
}
