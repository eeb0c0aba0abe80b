package stats

import "slices"

// ProgressGoal 是进度条满格所需的积分
const ProgressGoal = 1000

type badgeRule struct {
	badge Badge
	met   func(UserStats) bool
}

// badgeRules 的顺序即徽章的展示顺序：阅读数阶梯、积分阶梯、其他行为阶梯
var badgeRules = []badgeRule{
	{Badge{"First Book Read", "📚"}, func(s UserStats) bool { return s.BooksRead >= 1 }},
	{Badge{"Bookworm", "🐛"}, func(s UserStats) bool { return s.BooksRead >= 5 }},
	{Badge{"Avid Reader", "📖"}, func(s UserStats) bool { return s.BooksRead >= 10 }},
	{Badge{"Book Master", "🏆"}, func(s UserStats) bool { return s.BooksRead >= 25 }},
	{Badge{"Century Club", "💯"}, func(s UserStats) bool { return s.Points >= 100 }},
	{Badge{"Scholar", "🧠"}, func(s UserStats) bool { return s.Points >= 500 }},
	{Badge{"Intellectual", "🎓"}, func(s UserStats) bool { return s.Points >= 1000 }},
	{Badge{"Curator", "🔖"}, func(s UserStats) bool { return s.BooksBookmarked >= 5 }},
	{Badge{"Critic", "⭐"}, func(s UserStats) bool { return s.RatingsGiven >= 10 }},
}

// ComputeBadges 返回已达成的徽章，顺序固定
func ComputeBadges(s UserStats) []Badge {
	badges := []Badge{}
	for _, rule := range badgeRules {
		if rule.met(s) {
			badges = append(badges, rule.badge)
		}
	}
	return badges
}

// NewBadges 返回 after 中有而 before 中没有的徽章
func NewBadges(before, after UserStats) []Badge {
	old := ComputeBadges(before)
	var earned []Badge
	for _, b := range ComputeBadges(after) {
		if !slices.Contains(old, b) {
			earned = append(earned, b)
		}
	}
	return earned
}

// ProgressPercent 计算进度条百分比，上限100
func ProgressPercent(points int) float64 {
	return min(100, float64(points)/ProgressGoal*100)
}

// Project 把进度聚合投影为用户面板数据
func Project(s UserStats) Progress {
	return Progress{
		Points:          s.Points,
		BooksRead:       s.BooksRead,
		BooksBookmarked: s.BooksBookmarked,
		RatingsGiven:    s.RatingsGiven,
		ProgressPercent: ProgressPercent(s.Points),
		Badges:          ComputeBadges(s),
	}
}

// ApplyAward 增加积分并累加对应行为的计数
func ApplyAward(s *UserStats, amount int, activity Activity) {
	s.Points += amount
	switch activity {
	case ActivityRead:
		s.BooksRead++
	case ActivityBookmark:
		s.BooksBookmarked++
	case ActivityRate:
		s.RatingsGiven++
	}
}

// ToggleRead 切换阅读状态并返回切换后是否为已读。
// 取消已读时积分和阅读数都不会低于0。
func ToggleRead(s *UserStats, slug string) bool {
	if i := slices.Index(s.ReadBooks, slug); i >= 0 {
		s.ReadBooks = slices.Delete(s.ReadBooks, i, i+1)
		s.Points = max(0, s.Points-ReadPoints)
		s.BooksRead = max(0, s.BooksRead-1)
		return false
	}
	s.ReadBooks = append(s.ReadBooks, slug)
	ApplyAward(s, ReadPoints, ActivityRead)
	return true
}

// ReadNotification 返回标记已读后的提示文字
func ReadNotification(earned []Badge) string {
	if len(earned) > 0 {
		b := earned[len(earned)-1]
		return "🎉 Achievement Unlocked: " + b.Name + " " + b.Icon
	}
	return "🎉 +10 points for reading!"
}
