package viewmodel

import (
	"fmt"
	"slices"

	"github.com/SlpAus/book-summaries-backend/internal/catalog"
	"github.com/SlpAus/book-summaries-backend/internal/stats"
)

// Item 是列表中一本书的展示状态
type Item struct {
	catalog.ItemView
	URL          string `json:"url"`
	AverageText  string `json:"averageText"`
	Visible      bool   `json:"visible"`
	Bookmarked   bool   `json:"bookmarked"`
	Read         bool   `json:"read"`
	UserRating   int    `json:"userRating"`
	ActiveAuthor bool   `json:"activeAuthor"`
	ActiveTag    bool   `json:"activeTag"`
}

// Filter 是筛选控件的展示状态
type Filter struct {
	Selection    catalog.FilterSelection `json:"selection"`
	Query        string                  `json:"query"`
	ActiveTag    string                  `json:"activeTag"`
	ActiveAuthor string                  `json:"activeAuthor"`
}

// ViewModel 是一次页面渲染所需的全部状态
type ViewModel struct {
	User      stats.Progress `json:"user"`
	Filter    Filter         `json:"filter"`
	Items     []Item         `json:"items"`
	Visible   int            `json:"visible"`
	NoResults bool           `json:"noResults"`
}

// Build 是从访客状态和书目到视图的纯函数。
// items 应当已经按 selection.Sort 排好序。
func Build(st stats.UserStats, bookmarks []string, sel catalog.FilterSelection, items []catalog.ItemView) ViewModel {
	vm := ViewModel{
		User: stats.Project(st),
		Filter: Filter{
			Selection:    sel,
			ActiveTag:    sel.ActiveTag(),
			ActiveAuthor: sel.ActiveAuthor(),
		},
		Items: make([]Item, 0, len(items)),
	}
	if sel.Mode == catalog.FilterText {
		vm.Filter.Query = sel.Value
	}

	for _, it := range items {
		visible := sel.Matches(it)
		userRating, _ := st.Rating(it.Slug)
		vm.Items = append(vm.Items, Item{
			ItemView:     it,
			URL:          it.URL(),
			AverageText:  fmt.Sprintf("%.1f", it.Rating),
			Visible:      visible,
			Bookmarked:   slices.Contains(bookmarks, it.Slug),
			Read:         st.HasRead(it.Slug),
			UserRating:   userRating,
			ActiveAuthor: vm.Filter.ActiveAuthor != "" && it.Author == vm.Filter.ActiveAuthor,
			ActiveTag:    vm.Filter.ActiveTag != "" && catalog.HasTag(it, vm.Filter.ActiveTag),
		})
		if visible {
			vm.Visible++
		}
	}
	vm.NoResults = vm.Visible == 0
	return vm
}
