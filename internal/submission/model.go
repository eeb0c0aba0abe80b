package submission

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Submission 是等待审核的用户投稿
type Submission struct {
	ID            string    `gorm:"primaryKey;type:char(36)" json:"id"`
	UserID        string    `gorm:"index;type:char(36)" json:"-"`
	Slug          string    `gorm:"index;type:varchar(100)" json:"slug"`
	Title         string    `gorm:"not null" json:"title"`
	Authors       []string  `gorm:"serializer:json" json:"authors"`
	BookID        string    `gorm:"index" json:"bookId"`
	Source        string    `json:"source"`
	Summary       string    `gorm:"type:text;not null" json:"summary"`
	Language      string    `gorm:"type:varchar(16);not null" json:"language"`
	Description   string    `json:"description"`
	Tags          []string  `gorm:"serializer:json" json:"tags"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	PublishedDate string    `json:"publishedDate"`
	Status        string    `gorm:"index;type:varchar(16);not null" json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AuthorText 把作者列表拼成一行
func (s Submission) AuthorText() string {
	return strings.Join(s.Authors, ", ")
}

// Authors 同时接受字符串和字符串数组
type Authors []string

func (a *Authors) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one = strings.TrimSpace(one); one != "" {
			*a = Authors{one}
		} else {
			*a = nil
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

// Request 是提交摘要的请求体
type Request struct {
	Title         string  `json:"title"`
	Authors       Authors `json:"authors"`
	BookID        string  `json:"bookId"`
	Summary       string  `json:"summary"`
	Language      string  `json:"language"`
	Lang          string  `json:"lang"`
	ThumbnailURL  string  `json:"thumbnailUrl"`
	PublishedDate string  `json:"publishedDate"`
	Source        string  `json:"source"`
}
