package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownSource  = errors.New("Unknown source")
	ErrNoCategoryCode = errors.New("Category code is required")
)

const (
	defaultCategoryLimit = 12
	unknown              = "Unknown"
)

// Edition 是 Open Library 版本 (edition) 独有的字段
type Edition struct {
	ISBN10         []string `json:"isbn_10"`
	ISBN13         []string `json:"isbn_13"`
	PublishDate    string   `json:"publish_date"`
	Publishers     []string `json:"publishers"`
	NumberOfPages  *int     `json:"number_of_pages"`
	PhysicalFormat string   `json:"physical_format"`
}

// BookDetails 是单本书的详细信息，字段随来源不同而有所缺省
type BookDetails struct {
	Source       string   `json:"source"`
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Subtitle     string   `json:"subtitle"`
	Authors      []string `json:"authors"`
	Description  string   `json:"description"`
	ThumbnailURL string   `json:"thumbnailUrl"`

	// Google Books
	PublishedDate string   `json:"publishedDate,omitempty"`
	PageCount     *int     `json:"pageCount,omitempty"`
	Categories    []string `json:"categories,omitempty"`
	AverageRating *float64 `json:"averageRating,omitempty"`
	RatingsCount  int      `json:"ratingsCount,omitempty"`
	Language      string   `json:"language,omitempty"`

	// Open Library
	Subjects []string `json:"subjects,omitempty"`
	*Edition
}

// Details 查询一本书的详细信息。
// Open Library 的 id 可以是作品 (isWork) 或具体版本。
func (s *Searcher) Details(ctx context.Context, source, id string, isWork bool) (BookDetails, error) {
	switch source {
	case SourceGoogleBooks:
		return s.googleDetails(ctx, id)
	case SourceOpenLibrary:
		return s.openLibraryDetails(ctx, id, isWork)
	default:
		return BookDetails{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
}

func (s *Searcher) googleDetails(ctx context.Context, id string) (BookDetails, error) {
	var item googleVolume
	if err := s.getJSON(ctx, s.googleURL("/volumes/"+url.PathEscape(id), nil), &item); err != nil {
		return BookDetails{}, fmt.Errorf("Google Books 查询 %s 失败: %w", id, err)
	}
	info := item.VolumeInfo
	d := BookDetails{
		Source:        SourceGoogleBooks,
		ID:            id,
		Title:         orDefault(info.Title, unknown),
		Subtitle:      info.Subtitle,
		Authors:       orUnknown(info.Authors),
		PublishedDate: orDefault(info.PublishedDate, unknown),
		Description:   info.Description,
		PageCount:     info.PageCount,
		Categories:    info.Categories,
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		Language:      info.Language,
		ThumbnailURL:  info.ImageLinks.Thumbnail,
	}
	return d, nil
}

// olText 兼容 Open Library 的两种文本格式："..." 或 {"type": ..., "value": "..."}
type olText string

func (t *olText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = olText(s)
		return nil
	}
	var v struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(b, &v); err == nil {
		*t = olText(v.Value)
	}
	return nil
}

// olAuthorRef 作品使用 {"author": {"key": ...}}，版本直接使用 {"key": ...}
type olAuthorRef struct {
	Key    string `json:"key"`
	Author struct {
		Key string `json:"key"`
	} `json:"author"`
}

func (r olAuthorRef) id() string {
	key := r.Author.Key
	if key == "" {
		key = r.Key
	}
	return key[strings.LastIndex(key, "/")+1:]
}

type olRecord struct {
	Title       string        `json:"title"`
	Subtitle    string        `json:"subtitle"`
	Description olText        `json:"description"`
	Subjects    []string      `json:"subjects"`
	Covers      []int         `json:"covers"`
	Authors     []olAuthorRef `json:"authors"`
	Edition
}

func (s *Searcher) openLibraryDetails(ctx context.Context, id string, isWork bool) (BookDetails, error) {
	kind := "books"
	if isWork {
		kind = "works"
	}
	base := strings.TrimRight(s.cfg.OpenLibraryURL, "/")

	var rec olRecord
	if err := s.getJSON(ctx, fmt.Sprintf("%s/%s/%s.json", base, kind, url.PathEscape(id)), &rec); err != nil {
		return BookDetails{}, fmt.Errorf("Open Library 查询 %s 失败: %w", id, err)
	}

	d := BookDetails{
		Source:      SourceOpenLibrary,
		ID:          id,
		Title:       orDefault(rec.Title, unknown),
		Subtitle:    rec.Subtitle,
		Authors:     s.resolveAuthors(ctx, base, rec.Authors),
		Description: string(rec.Description),
		Subjects:    rec.Subjects,
	}
	if len(rec.Covers) > 0 {
		d.ThumbnailURL = fmt.Sprintf(openLibraryCovers, rec.Covers[0])
	}
	if !isWork {
		edition := rec.Edition
		d.Edition = &edition
	}
	return d, nil
}

// resolveAuthors 并行查询作者姓名，保持原有顺序；查询失败的作者记为 Unknown
func (s *Searcher) resolveAuthors(ctx context.Context, base string, refs []olAuthorRef) []string {
	names := make([]string, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			var author struct {
				Name string `json:"name"`
			}
			endpoint := fmt.Sprintf("%s/authors/%s.json", base, url.PathEscape(ref.id()))
			if err := s.getJSON(gctx, endpoint, &author); err != nil {
				logger.Warnf("查询作者 %s 失败: %v", ref.id(), err)
				names[i] = unknown
				return nil
			}
			names[i] = orDefault(author.Name, unknown)
			return nil
		})
	}
	_ = g.Wait()
	return names
}

// Category 是分类树中的一个节点，Code 用于 subject: 检索
type Category struct {
	Name          string     `json:"name"`
	Code          string     `json:"code"`
	Subcategories []Category `json:"subcategories,omitempty"`
}

// Categories 是浏览页使用的固定分类树
var Categories = []Category{
	{
		Name: "Fiction",
		Code: "fiction",
		Subcategories: []Category{
			{
				Name: "Literature",
				Code: "literary+fiction",
				Subcategories: []Category{
					{Name: "Literary Fiction", Code: "literary+fiction"},
					{Name: "Classics", Code: "classic+literature"},
					{Name: "Historical Fiction", Code: "historical+fiction"},
					{Name: "Short Stories", Code: "short+stories"},
					{Name: "Women's Fiction", Code: "womens+fiction"},
					{Name: "Men's Fiction", Code: "mens+fiction"},
				},
			},
		},
	},
	{
		Name: "Non-Fiction",
		Code: "nonfiction",
		Subcategories: []Category{
			{
				Name: "Self-Help",
				Code: "self-help",
				Subcategories: []Category{
					{Name: "Personal Development", Code: "personal+development"},
					{Name: "Motivation", Code: "motivation+self-help"},
					{Name: "Mindfulness and Meditation", Code: "mindfulness+meditation"},
				},
			},
		},
	},
}

// CategoryBook 是分类浏览中的一本书
type CategoryBook struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
	PageCount     *int     `json:"pageCount"`
	Categories    []string `json:"categories"`
	Rating        *float64 `json:"rating"`
	RatingsCount  int      `json:"ratingsCount"`
	ThumbnailURL  string   `json:"thumbnailUrl"`
	HasSummary    bool     `json:"hasSummary"`
}

// CategoryPage 是分类浏览的一页结果
type CategoryPage struct {
	Results    []CategoryBook `json:"results"`
	HasMore    bool           `json:"hasMore"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
}

// ByCategory 按 subject 分页浏览 Google Books。
// page 从1开始，limit 最大40。查询失败时返回空页和错误。
func (s *Searcher) ByCategory(ctx context.Context, code string, page, limit int) (CategoryPage, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return CategoryPage{}, ErrNoCategoryCode
	}
	page = max(1, page)
	if limit <= 0 {
		limit = defaultCategoryLimit
	}
	limit = min(limit, maxResultsCap)
	offset := (page - 1) * limit

	result := CategoryPage{Results: []CategoryBook{}, Page: page}
	endpoint := s.googleURL("/volumes", url.Values{
		"q":          {"subject:" + code},
		"maxResults": {strconv.Itoa(limit)},
		"startIndex": {strconv.Itoa(offset)},
		"orderBy":    {"relevance"},
	})

	var data googleVolumes
	if err := s.getJSON(ctx, endpoint, &data); err != nil {
		return result, fmt.Errorf("按分类 %s 浏览失败: %w", code, err)
	}

	for _, item := range data.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}
		result.Results = append(result.Results, CategoryBook{
			ID:            item.ID,
			Title:         info.Title,
			Authors:       orUnknown(info.Authors),
			PublishedDate: info.PublishedDate,
			Description:   info.Description,
			PageCount:     info.PageCount,
			Categories:    info.Categories,
			Rating:        info.AverageRating,
			RatingsCount:  info.RatingsCount,
			ThumbnailURL:  info.ImageLinks.Thumbnail,
		})
	}
	result.TotalCount = data.TotalItems
	result.HasMore = offset+limit < data.TotalItems
	return result, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
