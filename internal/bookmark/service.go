package bookmark

import (
	"bytes"
	"context"
	"errors"
	"slices"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
)

const (
	// ExportFileName 是导出文件的下载名
	ExportFileName = "my_bookmarked_summaries.txt"
	exportHeader   = "# My Bookmarked Book Summaries\n\n"
	unknownTitle   = "Unknown Title"

	bookmarkNotification = "🎉 +5 points for bookmarking!"
)

var (
	// ErrNoBookmarks 表示没有可以导出的收藏
	ErrNoBookmarks = errors.New("You don't have any bookmarked summaries to export.")
	ErrEmptySlug   = errors.New("书目标识为空")
)

// Catalog 提供按目录顺序排列的书目
type Catalog interface {
	Items() []catalog.ItemView
}

type Service struct {
	stats   *stats.Service
	catalog Catalog
}

func NewService(st *stats.Service, c Catalog) *Service {
	return &Service{stats: st, catalog: c}
}

// ToggleResult 是切换收藏的结果
type ToggleResult struct {
	Slug         string         `json:"slug"`
	Bookmarked   bool           `json:"bookmarked"`
	Awarded      bool           `json:"awarded"`
	Notification string         `json:"notification,omitempty"`
	Progress     stats.Progress `json:"progress"`
}

// Toggle 切换收藏状态。每本书只在第一次被收藏时奖励 +5 分，取消收藏不扣分。
// 收藏集合与进度在同一次写入中更新。
func (s *Service) Toggle(ctx context.Context, userID, slug string) (ToggleResult, error) {
	if slug == "" {
		return ToggleResult{}, ErrEmptySlug
	}
	res := ToggleResult{Slug: slug}
	_, after, err := s.stats.Mutate(ctx, userID, func(st *stats.State) error {
		if i := slices.Index(st.Bookmarks, slug); i >= 0 {
			st.Bookmarks = slices.Delete(st.Bookmarks, i, i+1)
			return nil
		}
		st.Bookmarks = append(st.Bookmarks, slug)
		res.Bookmarked = true
		if !st.Stats.EverBookmarked(slug) {
			st.Stats.Bookmarks = append(st.Stats.Bookmarks, slug)
			stats.ApplyAward(&st.Stats, stats.BookmarkPoints, stats.ActivityBookmark)
			res.Awarded = true
		}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	if res.Awarded {
		res.Notification = bookmarkNotification
	}
	res.Progress = stats.Project(after.Stats)
	return res, nil
}

// Remove 从收藏中移除一本书，不影响积分。书不在收藏中时什么也不做。
func (s *Service) Remove(ctx context.Context, userID, slug string) error {
	if slug == "" {
		return ErrEmptySlug
	}
	_, _, err := s.stats.Mutate(ctx, userID, func(st *stats.State) error {
		st.Bookmarks = slices.DeleteFunc(st.Bookmarks, func(b string) bool { return b == slug })
		return nil
	})
	return err
}

// List 返回已收藏且仍在目录中的书，保持目录顺序
func (s *Service) List(ctx context.Context, userID string) []catalog.ItemView {
	return Intersect(s.stats.GetState(ctx, userID).Bookmarks, s.catalog.Items())
}

// Export 生成纯文本的收藏清单。收藏为空时返回 ErrNoBookmarks。
func (s *Service) Export(ctx context.Context, userID string) ([]byte, error) {
	return Format(s.List(ctx, userID))
}

// Intersect 返回 items 中被收藏的书，保持 items 的顺序
func Intersect(bookmarks []string, items []catalog.ItemView) []catalog.ItemView {
	out := []catalog.ItemView{}
	for _, it := range items {
		if slices.Contains(bookmarks, it.Slug) {
			out = append(out, it)
		}
	}
	return out
}

// Format 把书目格式化为 "- Title by Author" 的清单，作者为空时省略
func Format(items []catalog.ItemView) ([]byte, error) {
	if len(items) == 0 {
		return nil, ErrNoBookmarks
	}
	var buf bytes.Buffer
	buf.WriteString(exportHeader)
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = unknownTitle
		}
		buf.WriteString("- ")
		buf.WriteString(title)
		if it.Author != "" {
			buf.WriteString(" by ")
			buf.WriteString(it.Author)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
