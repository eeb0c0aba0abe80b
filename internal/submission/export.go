package submission

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"gopkg.in/yaml.v3"
)

// pendingFrontMatter 是导出投稿时写入的YAML头部，字段与内容集合兼容
type pendingFrontMatter struct {
	Title         string   `yaml:"title"`
	PubDate       string   `yaml:"pubDate"`
	Description   string   `yaml:"description"`
	Author        string   `yaml:"author"`
	Language      string   `yaml:"language"`
	Tags          []string `yaml:"tags"`
	BookID        string   `yaml:"bookId"`
	Status        string   `yaml:"status"`
	ThumbnailURL  string   `yaml:"thumbnailUrl,omitempty"`
	PublishedDate string   `yaml:"publishedDate,omitempty"`
}

// FileName 返回导出文件名，非英文摘要带语言后缀
func (s Submission) FileName() string {
	if s.Language != "english" {
		return fmt.Sprintf("%s-%s.md", s.Slug, s.Language)
	}
	return s.Slug + ".md"
}

// Markdown 把投稿渲染成带front matter的摘要文件
func (s Submission) Markdown() ([]byte, error) {
	fm := pendingFrontMatter{
		Title:         s.Title,
		PubDate:       s.CreatedAt.UTC().Format("2006-01-02"),
		Description:   s.Description,
		Author:        s.AuthorText(),
		Language:      s.Language,
		Tags:          s.Tags,
		BookID:        s.BookID,
		Status:        s.Status,
		ThumbnailURL:  s.ThumbnailURL,
		PublishedDate: s.PublishedDate,
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("序列化front matter失败: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	buf.WriteString(s.Summary)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ExportPending 把所有待审核投稿写到 dir 目录，返回写入的文件数
func (s *Service) ExportPending(ctx context.Context, dir string) (int, error) {
	subs, err := s.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("无法创建导出目录 %s: %w", dir, err)
	}

	written := 0
	for _, sub := range subs {
		blob, err := sub.Markdown()
		if err != nil {
			logger.Warnf("跳过投稿 %s: %v", sub.ID, err)
			continue
		}
		path := filepath.Join(dir, sub.FileName())
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return written, fmt.Errorf("写入 %s 失败: %w", path, err)
		}
		written++
	}
	return written, nil
}
