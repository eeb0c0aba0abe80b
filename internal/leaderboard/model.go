package leaderboard

import (
	"encoding/json"

	"github.com/SlpAus/book-summaries-backend/internal/stats"
)

const (
	DefaultUsername = "Anonymous Reader"
	DefaultIcon     = "🏅"
	// Limit 是排行榜展示的行数
	Limit = 10
)

// Board.Source 的取值
const (
	SourceLive = "live"
	SourceMock = "mock"
)

// Badges 容忍远端返回的非数组值，解析失败时视为没有徽章
type Badges []stats.Badge

func (b *Badges) UnmarshalJSON(data []byte) error {
	var list []stats.Badge
	if err := json.Unmarshal(data, &list); err != nil {
		*b = nil
		return nil
	}
	*b = list
	return nil
}

// Entry 是排行榜中的一行
type Entry struct {
	Username  string `json:"username"`
	BooksRead int    `json:"books_read"`
	Points    int    `json:"points"`
	Badges    Badges `json:"badges"`
}

// normalize 补上缺失的昵称和徽章图标
func (e Entry) normalize() Entry {
	if e.Username == "" {
		e.Username = DefaultUsername
	}
	badges := make(Badges, 0, len(e.Badges))
	for _, b := range e.Badges {
		if b.Icon == "" {
			b.Icon = DefaultIcon
		}
		badges = append(badges, b)
	}
	e.Badges = badges
	return e
}

// Board 是返回给前端的排行榜
type Board struct {
	Source  string  `json:"source"`
	Entries []Entry `json:"entries"`
}

// MockEntries 返回没有真实数据时展示的固定十行
func MockEntries() []Entry {
	b := func(name, icon string) stats.Badge { return stats.Badge{Name: name, Icon: icon} }
	return []Entry{
		{Username: "BookMaster", BooksRead: 42, Points: 950, Badges: Badges{b("Intellectual", "🎓"), b("Book Master", "🏆")}},
		{Username: "LiteraryExplorer", BooksRead: 36, Points: 780, Badges: Badges{b("Scholar", "🧠"), b("Avid Reader", "📖")}},
		{Username: "Bibliophile", BooksRead: 28, Points: 620, Badges: Badges{b("Century Club", "💯"), b("Curator", "🔖")}},
		{Username: "PageTurner", BooksRead: 23, Points: 540, Badges: Badges{b("Critic", "⭐")}},
		{Username: "Bookworm", BooksRead: 19, Points: 470, Badges: Badges{b("Bookworm", "🐛")}},
		{Username: "KnowledgeSeeker", BooksRead: 15, Points: 380, Badges: Badges{b("First Book Read", "📚")}},
		{Username: "WordSmith", BooksRead: 12, Points: 320, Badges: Badges{}},
		{Username: "LitLover", BooksRead: 10, Points: 280, Badges: Badges{}},
		{Username: "ReadingRookie", BooksRead: 7, Points: 220, Badges: Badges{}},
		{Username: "NovelNewbie", BooksRead: 4, Points: 160, Badges: Badges{}},
	}
}
