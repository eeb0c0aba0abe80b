package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/SlpAus/book-summaries-backend/internal/platform/metadata"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoFrontMatter = errors.New("缺少YAML front matter")
	ErrMissingField  = errors.New("缺少必填字段")
)

// frontMatter 对应内容集合中每篇摘要头部的YAML
type frontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	PubDate     string   `yaml:"pubDate"`
	UpdatedDate string   `yaml:"updatedDate"`
	HeroImage   string   `yaml:"heroImage"`
	Tags        []string `yaml:"tags"`
	Author      string   `yaml:"author"`
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"Jan 2 2006",
	"Jan 02 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期 %q", s)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9/._-]+`)

// SlugFromPath 由内容文件的相对路径得到书目标识
func SlugFromPath(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.TrimSuffix(rel, "/index")
	s := slugUnsafe.ReplaceAllString(strings.ToLower(rel), "-")
	return strings.Trim(s, "-/")
}

// ParseSummary 解析一篇摘要文件的front matter
func ParseSummary(slug string, content []byte) (Book, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return Book{}, ErrNoFrontMatter
	}
	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return Book{}, ErrNoFrontMatter
	}

	var fm frontMatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return Book{}, fmt.Errorf("解析front matter失败: %w", err)
	}
	if fm.Title == "" || fm.Description == "" || fm.PubDate == "" || fm.Author == "" {
		return Book{}, fmt.Errorf("%w (title, description, pubDate, author)", ErrMissingField)
	}

	pub, err := parseDate(fm.PubDate)
	if err != nil {
		return Book{}, err
	}
	b := Book{
		Slug:        slug,
		Title:       fm.Title,
		Description: fm.Description,
		Author:      fm.Author,
		Tags:        fm.Tags,
		HeroImage:   fm.HeroImage,
		PubDate:     pub,
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if fm.UpdatedDate != "" {
		updated, err := parseDate(fm.UpdatedDate)
		if err != nil {
			return Book{}, err
		}
		b.UpdatedDate = &updated
	}
	return b, nil
}

// ImportResult 汇总一次导入的结果
type ImportResult struct {
	Imported int
	Skipped  []string
}

// ImportDir 读取目录下所有 .md/.mdx 摘要并写入 books 表。
// 已存在的书目只更新内容字段，评分数据保持不变。
func ImportDir(db *gorm.DB, dir string) (ImportResult, error) {
	var res ImportResult
	var books []Book

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".mdx" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		b, err := ParseSummary(SlugFromPath(rel), content)
		if err != nil {
			logger.Warnf("跳过 %s: %v", rel, err)
			res.Skipped = append(res.Skipped, rel)
			return nil
		}
		books = append(books, b)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("遍历目录 %s 失败: %w", dir, err)
	}

	if err := UpsertBooks(db, books); err != nil {
		return res, err
	}
	res.Imported = len(books)
	return res, nil
}

// UpsertBooks 在一个事务中写入书目并记录导入时间
func UpsertBooks(db *gorm.DB, books []Book) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if len(books) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "slug"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "description", "author", "tags", "hero_image", "pub_date", "updated_date", "updated_at",
				}),
			}).CreateInBatches(&books, 200).Error
			if err != nil {
				return fmt.Errorf("批量写入书目失败: %w", err)
			}
		}
		return metadata.SetTime(tx, metadata.CatalogImportedAtKey, time.Now())
	})
}
