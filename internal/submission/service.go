package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/SlpAus/book-summaries-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrEmptySummary    = errors.New("Please enter a summary")
	ErrNoBook          = errors.New("Please select a book first")
	ErrInvalidLanguage = errors.New("Unsupported language")
)

const maxSlugLength = 100

var submissionTags = []string{"user-submitted", "pending-review"}

// supportedLanguages 是可以投稿的摘要语言
var supportedLanguages = map[string]struct{}{
	"english": {},
	"spanish": {},
	"french":  {},
	"hindi":   {},
}

// LanguageForSite 把站点语言代码映射为摘要语言，未知代码一律视为 hindi
func LanguageForSite(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en":
		return "english"
	case "es":
		return "spanish"
	case "fr":
		return "french"
	default:
		return "hindi"
	}
}

// Slugify 由书名生成slug：小写，非字母数字转为连字符，合并连续连字符，最长100个字符
func Slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune('-')
		}
	}
	slug := strings.Join(strings.Fields(b.String()), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if runes := []rune(slug); len(runes) > maxSlugLength {
		slug = string(runes[:maxSlugLength])
	}
	return slug
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// MigrateDB 负责自动迁移投稿表
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(&Submission{}); err != nil {
		return fmt.Errorf("无法迁移submissions表: %w", err)
	}
	return nil
}

func resolveLanguage(req Request) (string, error) {
	if lang := strings.ToLower(strings.TrimSpace(req.Language)); lang != "" {
		if _, ok := supportedLanguages[lang]; !ok {
			return "", ErrInvalidLanguage
		}
		return lang, nil
	}
	if req.Lang != "" {
		return LanguageForSite(req.Lang), nil
	}
	return "english", nil
}

// Submit 校验请求并保存一条待审核的投稿
func (s *Service) Submit(ctx context.Context, userID string, req Request) (Submission, error) {
	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return Submission{}, ErrEmptySummary
	}
	title := strings.TrimSpace(req.Title)
	bookID := strings.TrimSpace(req.BookID)
	if title == "" || bookID == "" {
		return Submission{}, ErrNoBook
	}
	language, err := resolveLanguage(req)
	if err != nil {
		return Submission{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Submission{}, fmt.Errorf("生成投稿ID失败: %w", err)
	}
	authors := orUnknown(req.Authors)
	sub := Submission{
		ID:            id.String(),
		UserID:        userID,
		Slug:          Slugify(title),
		Title:         title,
		Authors:       authors,
		BookID:        bookID,
		Source:        req.Source,
		Summary:       summary,
		Language:      language,
		Tags:          append([]string(nil), submissionTags...),
		ThumbnailURL:  req.ThumbnailURL,
		PublishedDate: req.PublishedDate,
		Status:        StatusPending,
	}
	sub.Description = fmt.Sprintf("Summary of the book '%s' by %s.", title, sub.AuthorText())

	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return Submission{}, fmt.Errorf("保存投稿失败: %w", err)
	}
	logger.Infof("收到新的摘要投稿: %s (%s)", sub.Slug, sub.Language)
	return sub, nil
}

// Pending 按提交时间返回所有待审核的投稿
func (s *Service) Pending(ctx context.Context) ([]Submission, error) {
	var subs []Submission
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at asc, id asc").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("读取待审核投稿失败: %w", err)
	}
	return subs, nil
}

// SubmittedBookIDs 返回给定书目中已经收到过投稿的外部id集合
func (s *Service) SubmittedBookIDs(ctx context.Context, bookIDs []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(bookIDs) == 0 {
		return found, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&Submission{}).
		Where("book_id IN ?", bookIDs).
		Distinct().
		Pluck("book_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("查询已投稿书目失败: %w", err)
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}
