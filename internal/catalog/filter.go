package catalog

import (
	"slices"
	"strings"
)

// FilterMode 表示当前生效的筛选方式，同一时间只有一种
type FilterMode string

const (
	FilterNone   FilterMode = "none"
	FilterText   FilterMode = "text"
	FilterTag    FilterMode = "tag"
	FilterAuthor FilterMode = "author"
)

// FilterSelection 是访客当前的筛选与排序选择，以JSON保存在 bookFilter 键中。
// 后应用的筛选会替换之前的筛选，标签和作者不会叠加。
type FilterSelection struct {
	Mode  FilterMode `json:"mode"`
	Value string     `json:"value,omitempty"`
	Sort  SortKey    `json:"sort"`
}

// DefaultSelection 不做筛选，按最新排序
func DefaultSelection() FilterSelection {
	return FilterSelection{Mode: FilterNone, Sort: SortNewest}
}

// FilterByText 返回按关键词筛选的选择，空关键词等同于不筛选
func (f FilterSelection) FilterByText(query string) FilterSelection {
	if strings.TrimSpace(query) == "" {
		return FilterSelection{Mode: FilterNone, Sort: f.Sort}
	}
	return FilterSelection{Mode: FilterText, Value: query, Sort: f.Sort}
}

// FilterByTag 返回按标签筛选的选择，分类按钮也使用它
func (f FilterSelection) FilterByTag(tag string) FilterSelection {
	if tag == "" {
		return FilterSelection{Mode: FilterNone, Sort: f.Sort}
	}
	return FilterSelection{Mode: FilterTag, Value: tag, Sort: f.Sort}
}

// FilterByAuthor 返回按作者筛选的选择
func (f FilterSelection) FilterByAuthor(author string) FilterSelection {
	if author == "" {
		return FilterSelection{Mode: FilterNone, Sort: f.Sort}
	}
	return FilterSelection{Mode: FilterAuthor, Value: author, Sort: f.Sort}
}

// SortBy 返回使用新排序方式的选择，筛选不变
func (f FilterSelection) SortBy(key SortKey) FilterSelection {
	f.Sort = key
	return f
}

// Normalize 修正从存储中读出的不完整或非法的选择
func (f FilterSelection) Normalize() FilterSelection {
	if _, ok := ParseSortKey(string(f.Sort)); !ok {
		f.Sort = SortNewest
	}
	switch f.Mode {
	case FilterText:
		return f.FilterByText(f.Value)
	case FilterTag:
		return f.FilterByTag(f.Value)
	case FilterAuthor:
		return f.FilterByAuthor(f.Value)
	default:
		return FilterSelection{Mode: FilterNone, Sort: f.Sort}
	}
}

// ActiveTag 返回需要高亮的标签
func (f FilterSelection) ActiveTag() string {
	if f.Mode == FilterTag {
		return f.Value
	}
	return ""
}

// ActiveAuthor 返回需要高亮的作者
func (f FilterSelection) ActiveAuthor() string {
	if f.Mode == FilterAuthor {
		return f.Value
	}
	return ""
}

// Matches 判断书目在当前筛选下是否可见
func (f FilterSelection) Matches(item ItemView) bool {
	switch f.Mode {
	case FilterText:
		return MatchText(item, f.Value)
	case FilterTag:
		return MatchTag(item, f.Value)
	case FilterAuthor:
		return MatchAuthor(item, f.Value)
	default:
		return true
	}
}

// MatchText 不区分大小写地在标题、简介、标签和作者中查找关键词
func MatchText(item ItemView, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(item.Title), q) ||
		strings.Contains(strings.ToLower(item.Description), q) ||
		strings.Contains(joinedTags(item), q) ||
		strings.Contains(strings.ToLower(item.Author), q)
}

// MatchTag 不区分大小写地在标签列表中查找
func MatchTag(item ItemView, tag string) bool {
	return strings.Contains(joinedTags(item), strings.ToLower(tag))
}

// HasTag 判断书目是否带有与 tag 完全相同的标签 (不区分大小写)
func HasTag(item ItemView, tag string) bool {
	return slices.ContainsFunc(item.Tags, func(t string) bool { return strings.EqualFold(t, tag) })
}

// MatchAuthor 精确匹配作者
func MatchAuthor(item ItemView, author string) bool {
	return item.Author == author
}

func joinedTags(item ItemView) string {
	return strings.ToLower(strings.Join(item.Tags, ","))
}

// Filter 返回可见的书目，保持原有顺序
func Filter(items []ItemView, sel FilterSelection) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		if sel.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}
