package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"gorm.io/gorm"
)

var ErrEmptyCatalog = errors.New("书目为空")

// Repository 是书目的内存仓库。
// 书目本身在启动后只读，评分和浏览数通过专用方法就地更新。
type Repository struct {
	mu    sync.RWMutex
	items []ItemView
	index map[string]int
	// ratingVersions 记录每本书最后一次应用的聚合版本
	ratingVersions map[string]int64
}

// globalRepository 是进程内唯一的书目仓库
var globalRepository = NewRepository(nil)

// DefaultRepository 返回全局书目仓库
func DefaultRepository() *Repository {
	return globalRepository
}

// NewRepository 用给定的书目构造仓库，书目顺序即展示顺序
func NewRepository(items []ItemView) *Repository {
	r := &Repository{}
	r.Replace(items)
	return r
}

// Replace 整体替换仓库中的书目
func (r *Repository) Replace(items []ItemView) {
	index := make(map[string]int, len(items))
	cp := make([]ItemView, len(items))
	for i, it := range items {
		it.Tags = slices.Clone(it.Tags)
		cp[i] = it
		index[it.Slug] = i
	}
	r.mu.Lock()
	r.items = cp
	r.index = index
	r.ratingVersions = make(map[string]int64)
	r.mu.Unlock()
}

// LoadFromDB 从SQLite加载书目，按发布日期从新到旧排列
func (r *Repository) LoadFromDB(db *gorm.DB) error {
	var books []Book
	if err := db.Order("pub_date desc").Order("id asc").Find(&books).Error; err != nil {
		return fmt.Errorf("无法从SQLite加载书目: %w", err)
	}
	items := make([]ItemView, len(books))
	for i, b := range books {
		items[i] = toItemView(b)
	}
	r.Replace(items)
	logger.Infof("书目仓库 (Repository) 初始化成功，加载了 %d 本书。", len(items))
	return nil
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Items 返回所有书目的副本，顺序为目录顺序
func (r *Repository) Items() []ItemView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ItemView, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Repository) Get(slug string) (ItemView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[slug]
	if !ok {
		return ItemView{}, false
	}
	return r.items[i], true
}

func (r *Repository) Exists(slug string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[slug]
	return ok
}

// Slugs 返回所有书目的标识
func (r *Repository) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.items))
	for i, it := range r.items {
		out[i] = it.Slug
	}
	return out
}

// UpdateRating 就地更新书目的平均分和评分人数，并把版本重置为0。
// 用于启动和缓存重建时整体加载聚合。
func (r *Repository) UpdateRating(slug string, average float64, count int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[slug]
	if !ok {
		return false
	}
	r.items[i].Rating = average
	r.items[i].RatingCount = count
	delete(r.ratingVersions, slug)
	return true
}

// ResetRatingVersions 清空所有评分版本，聚合存储被整体重新加载时调用
func (r *Repository) ResetRatingVersions() {
	r.mu.Lock()
	r.ratingVersions = make(map[string]int64)
	r.mu.Unlock()
}

// ApplyRating 只有当 version 比已应用的版本新时才更新评分。
// 并发评分时较旧的聚合不会覆盖较新的聚合。
func (r *Repository) ApplyRating(slug string, average float64, count int, version int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[slug]
	if !ok || version <= r.ratingVersions[slug] {
		return false
	}
	r.items[i].Rating = average
	r.items[i].RatingCount = count
	r.ratingVersions[slug] = version
	return true
}

// SetViews 设置书目的浏览数，用于启动时加载计数
func (r *Repository) SetViews(slug string, views int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[slug]
	if !ok {
		return false
	}
	r.items[i].Views = views
	return true
}

// IncrementViews 为书目的浏览数加一，未知书目被忽略
func (r *Repository) IncrementViews(slug string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[slug]
	if !ok {
		return false
	}
	r.items[i].Views++
	return true
}

// Random 均匀随机地选择一本书
func (r *Repository) Random() (ItemView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.items) == 0 {
		return ItemView{}, ErrEmptyCatalog
	}
	return r.items[rand.Intn(len(r.items))], nil
}
