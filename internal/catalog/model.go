package catalog

import (
	"time"

	"gorm.io/gorm"
)

// Book 定义了数据库中书目摘要的数据结构
type Book struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// Slug 是书目的唯一标识，同时用于页面URL，例如 "atomic-habits"
	Slug string `gorm:"uniqueIndex;not null"`

	Title       string
	Description string
	Author      string   `gorm:"index"`
	Tags        []string `gorm:"serializer:json"`
	HeroImage   string

	PubDate     time.Time `gorm:"index"`
	UpdatedDate *time.Time

	// --- 以下字段由评分聚合的快照备份写入 ---

	// RatingSum 是所有访客评分之和，平均分 = RatingSum / RatingCount
	RatingSum   float64
	RatingCount int
}

// ItemView 是书目在内存中的展示数据，评分和浏览数会被就地更新
type ItemView struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	HeroImage   string    `json:"heroImage,omitempty"`
	Date        time.Time `json:"date"`
	Views       int64     `json:"views"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"ratingCount"`
}

// URL 返回书目页面的相对地址
func (i ItemView) URL() string {
	return "/books/" + i.Slug + "/"
}

func toItemView(b Book) ItemView {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	v := ItemView{
		Slug:        b.Slug,
		Title:       b.Title,
		Author:      b.Author,
		Description: b.Description,
		Tags:        tags,
		HeroImage:   b.HeroImage,
		Date:        b.PubDate,
		RatingCount: b.RatingCount,
	}
	if b.RatingCount > 0 {
		v.Rating = b.RatingSum / float64(b.RatingCount)
	}
	return v
}
