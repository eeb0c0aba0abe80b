package stats

import "slices"

// Activity 是可以获得积分的行为
type Activity string

const (
	ActivityRead     Activity = "read"
	ActivityBookmark Activity = "bookmark"
	ActivityRate     Activity = "rate"
)

// 各行为的固定积分
const (
	ReadPoints     = 10
	BookmarkPoints = 5
	RatePoints     = 3
)

// UserStats 是访客的进度聚合，以JSON保存在 userStats 键中。
// Bookmarks 记录曾经收藏过的书，用于只奖励一次收藏积分；当前收藏集合保存在 bookmarks 键中。
type UserStats struct {
	Points          int            `json:"points"`
	BooksRead       int            `json:"booksRead"`
	BooksBookmarked int            `json:"booksBookmarked"`
	RatingsGiven    int            `json:"ratingsGiven"`
	ReadBooks       []string       `json:"readBooks"`
	Bookmarks       []string       `json:"bookmarks"`
	Ratings         map[string]int `json:"ratings"`
}

// DefaultStats 返回全零的初始进度
func DefaultStats() UserStats {
	return UserStats{
		ReadBooks: []string{},
		Bookmarks: []string{},
		Ratings:   map[string]int{},
	}
}

// normalize 修补旧数据或损坏数据中缺失的集合与负数计数
func (s *UserStats) normalize() {
	if s.ReadBooks == nil {
		s.ReadBooks = []string{}
	}
	if s.Bookmarks == nil {
		s.Bookmarks = []string{}
	}
	if s.Ratings == nil {
		s.Ratings = map[string]int{}
	}
	s.Points = max(0, s.Points)
	s.BooksRead = max(0, s.BooksRead)
	s.BooksBookmarked = max(0, s.BooksBookmarked)
	s.RatingsGiven = max(0, s.RatingsGiven)
}

// Clone 返回一个不共享集合的副本
func (s UserStats) Clone() UserStats {
	out := s
	out.ReadBooks = slices.Clone(s.ReadBooks)
	out.Bookmarks = slices.Clone(s.Bookmarks)
	out.Ratings = make(map[string]int, len(s.Ratings))
	for k, v := range s.Ratings {
		out.Ratings[k] = v
	}
	out.normalize()
	return out
}

func (s UserStats) HasRead(slug string) bool {
	return slices.Contains(s.ReadBooks, slug)
}

// EverBookmarked 判断这本书是否已经获得过收藏积分
func (s UserStats) EverBookmarked(slug string) bool {
	return slices.Contains(s.Bookmarks, slug)
}

// Rating 返回访客对这本书的评分，未评分时 ok 为 false
func (s UserStats) Rating(slug string) (int, bool) {
	r, ok := s.Ratings[slug]
	return r, ok && r > 0
}

// Badge 是根据进度阈值推导出的成就徽章，不单独存储
type Badge struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Progress 是用户面板需要的投影数据
type Progress struct {
	Points          int     `json:"points"`
	BooksRead       int     `json:"booksRead"`
	BooksBookmarked int     `json:"booksBookmarked"`
	RatingsGiven    int     `json:"ratingsGiven"`
	ProgressPercent float64 `json:"progressPercent"`
	Badges          []Badge `json:"badges"`
}

// State 是一次原子修改中可见的全部访客数据
type State struct {
	Stats     UserStats
	Bookmarks []string
}

// IsBookmarked 判断书是否在当前收藏集合中
func (s *State) IsBookmarked(slug string) bool {
	return slices.Contains(s.Bookmarks, slug)
}
