package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyQuery = errors.New("No search query provided")

// 检索结果的来源
const (
	SourceGoogleBooks = "Google Books"
	SourceOpenLibrary = "Open Library"
)

const (
	defaultMaxResults = 10
	// Google Books 单次最多返回40条
	maxResultsCap     = 40
	searchTimeout     = 10 * time.Second
	openLibraryCovers = "https://covers.openlibrary.org/b/id/%d-M.jpg"
)

// Candidate 是外部检索返回的一本候选书
type Candidate struct {
	Source        string   `json:"source"`
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
	ThumbnailURL  string   `json:"thumbnailUrl"`
}

// Searcher 并行查询 Google Books 和 Open Library
type Searcher struct {
	cfg  config.SearchConfig
	http *http.Client
}

// NewSearcher 创建检索器，hc 为 nil 时使用带超时的默认客户端
func NewSearcher(cfg config.SearchConfig, hc *http.Client) *Searcher {
	if hc == nil {
		hc = &http.Client{Timeout: searchTimeout}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	return &Searcher{cfg: cfg, http: hc}
}

// Search 返回两个来源合并后的结果，Google Books 在前。
// limit 平分给两个来源；单个来源失败只记录日志，不影响另一个。
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.cfg.MaxResults
	}
	limit = min(limit, maxResultsCap)
	perSource := max(1, limit/2)

	var google, openLibrary []Candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.searchGoogleBooks(gctx, query, perSource)
		if err != nil {
			logger.Warnf("Google Books 检索失败: %v", err)
		}
		google = res
		return nil
	})
	g.Go(func() error {
		res, err := s.searchOpenLibrary(gctx, query, perSource)
		if err != nil {
			logger.Warnf("Open Library 检索失败: %v", err)
		}
		openLibrary = res
		return nil
	})
	_ = g.Wait()

	results := make([]Candidate, 0, len(google)+len(openLibrary))
	results = append(results, google...)
	results = append(results, openLibrary...)
	return results, nil
}

func (s *Searcher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("返回状态码 %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

type googleVolume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Subtitle      string   `json:"subtitle"`
		Authors       []string `json:"authors"`
		PublishedDate string   `json:"publishedDate"`
		Description   string   `json:"description"`
		PageCount     *int     `json:"pageCount"`
		Categories    []string `json:"categories"`
		AverageRating *float64 `json:"averageRating"`
		RatingsCount  int      `json:"ratingsCount"`
		Language      string   `json:"language"`
		ImageLinks    struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

type googleVolumes struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

// googleURL 拼接 Google Books 的请求地址，配置了密钥时附带 key 参数
func (s *Searcher) googleURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if s.cfg.GoogleBooksAPIKey != "" {
		params.Set("key", s.cfg.GoogleBooksAPIKey)
	}
	endpoint := strings.TrimRight(s.cfg.GoogleBooksURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return endpoint
}

func (s *Searcher) searchGoogleBooks(ctx context.Context, query string, limit int) ([]Candidate, error) {
	endpoint := s.googleURL("/volumes", url.Values{
		"q":          {query},
		"maxResults": {strconv.Itoa(limit)},
	})

	var data googleVolumes
	if err := s.getJSON(ctx, endpoint, &data); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(data.Items))
	for _, item := range data.Items {
		info := item.VolumeInfo
		if info.Title == "" {
			continue
		}
		out = append(out, Candidate{
			Source:        SourceGoogleBooks,
			ID:            item.ID,
			Title:         info.Title,
			Authors:       orUnknown(info.Authors),
			PublishedDate: info.PublishedDate,
			Description:   info.Description,
			ThumbnailURL:  info.ImageLinks.Thumbnail,
		})
	}
	return out, nil
}

type openLibrarySearch struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverID          int      `json:"cover_i"`
	} `json:"docs"`
}

func (s *Searcher) searchOpenLibrary(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}
	endpoint := strings.TrimRight(s.cfg.OpenLibraryURL, "/") + "/search.json?" + params.Encode()

	var data openLibrarySearch
	if err := s.getJSON(ctx, endpoint, &data); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(data.Docs))
	for _, doc := range data.Docs {
		c := Candidate{
			Source:  SourceOpenLibrary,
			Title:   doc.Title,
			Authors: orUnknown(doc.AuthorName),
		}
		if c.Title == "" {
			c.Title = "Unknown"
		}
		if doc.Key != "" {
			c.ID = doc.Key[strings.LastIndex(doc.Key, "/")+1:]
		}
		if doc.FirstPublishYear > 0 {
			c.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
		}
		if doc.CoverID > 0 {
			c.ThumbnailURL = fmt.Sprintf(openLibraryCovers, doc.CoverID)
		}
		out = append(out, c)
	}
	return out, nil
}

func orUnknown(authors []string) []string {
	if len(authors) == 0 {
		return []string{"Unknown"}
	}
	return authors
}
