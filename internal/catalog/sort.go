package catalog

import (
	"cmp"
	"slices"
)

// SortKey 是书目列表的排序方式
type SortKey string

const (
	SortNewest  SortKey = "newest"
	SortOldest  SortKey = "oldest"
	SortPopular SortKey = "popular"
	SortRated   SortKey = "rated"
)

// MinRatingSamples 是参与“最高评分”排序所需的最少评分人数
const MinRatingSamples = 3

// ParseSortKey 解析排序方式，空字符串视为最新
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case "", SortNewest:
		return SortNewest, true
	case SortOldest, SortPopular, SortRated:
		return SortKey(s), true
	}
	return "", false
}

// SortItems 原地稳定排序
func SortItems(items []ItemView, key SortKey) {
	var fn func(a, b ItemView) int
	switch key {
	case SortOldest:
		fn = func(a, b ItemView) int { return a.Date.Compare(b.Date) }
	case SortPopular:
		fn = byViewsDesc
	case SortRated:
		fn = compareRated
	default:
		fn = func(a, b ItemView) int { return b.Date.Compare(a.Date) }
	}
	slices.SortStableFunc(items, fn)
}

// TopRated 返回按评分排序的副本
func TopRated(items []ItemView) []ItemView {
	out := slices.Clone(items)
	SortItems(out, SortRated)
	return out
}

func byViewsDesc(a, b ItemView) int {
	return cmp.Compare(b.Views, a.Views)
}

// compareRated 按平均分从高到低排序。
// 两本书都少于3个评分或平均分相同时按浏览数排序；只有一本少于3个评分时它排在后面。
func compareRated(a, b ItemView) int {
	if a.Rating == b.Rating || (a.RatingCount < MinRatingSamples && b.RatingCount < MinRatingSamples) {
		return byViewsDesc(a, b)
	}
	if a.RatingCount < MinRatingSamples {
		return 1
	}
	if b.RatingCount < MinRatingSamples {
		return -1
	}
	return cmp.Compare(b.Rating, a.Rating)
}
