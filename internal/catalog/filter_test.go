package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleItems() []ItemView {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	return []ItemView{
		{Slug: "atomic-habits", Title: "Atomic Habits", Author: "James Clear", Description: "Tiny changes", Tags: []string{"Self-Help", "Productivity"}, Date: day(5), Views: 40},
		{Slug: "dune", Title: "Dune", Author: "Frank Herbert", Description: "Desert planet epic", Tags: []string{"Fiction", "SciFi"}, Date: day(3), Views: 90},
		{Slug: "sapiens", Title: "Sapiens", Author: "Yuval Noah Harari", Description: "A brief history of humankind", Tags: []string{"History"}, Date: day(4), Views: 10},
		{Slug: "deep-work", Title: "Deep Work", Author: "Cal Newport", Description: "Focus", Tags: nil, Date: day(1), Views: 10},
	}
}

func slugs(items []ItemView) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Slug
	}
	return out
}

func TestFilterByTextMatchesAnyField(t *testing.T) {
	items := sampleItems()
	sel := DefaultSelection()

	cases := map[string][]string{
		"atomic":     {"atomic-habits"},
		"DESERT":     {"dune"},
		"scifi":      {"dune"},
		"newport":    {"deep-work"},
		"h":          {"atomic-habits", "dune", "sapiens"},
		"nothing-at": {},
	}
	for q, want := range cases {
		got := Filter(items, sel.FilterByText(q))
		assert.Equal(t, want, slugs(got), q)
	}
}

// 可见集合等于关键词为任一字段子串的书目集合
func TestFilterByTextProperty(t *testing.T) {
	items := sampleItems()
	for _, q := range []string{"a", "E", "his", "fic", "cal", "zzz", "-"} {
		sel := DefaultSelection().FilterByText(q)
		for _, it := range items {
			want := MatchText(it, q)
			assert.Equal(t, want, sel.Matches(it))
		}
	}
}

func TestEmptyTextShowsAll(t *testing.T) {
	sel := DefaultSelection().FilterByText("   ")
	assert.Equal(t, FilterNone, sel.Mode)
	assert.Len(t, Filter(sampleItems(), sel), 4)
}

func TestFilterByTagCaseInsensitive(t *testing.T) {
	got := Filter(sampleItems(), DefaultSelection().FilterByTag("fiction"))
	assert.Equal(t, []string{"dune"}, slugs(got))

	got = Filter(sampleItems(), DefaultSelection().FilterByTag("self-help"))
	assert.Equal(t, []string{"atomic-habits"}, slugs(got))
}

func TestFilterByAuthorExact(t *testing.T) {
	assert.Equal(t, []string{"dune"}, slugs(Filter(sampleItems(), DefaultSelection().FilterByAuthor("Frank Herbert"))))
	assert.Empty(t, Filter(sampleItems(), DefaultSelection().FilterByAuthor("frank herbert")))
}

func TestLastFilterWins(t *testing.T) {
	sel := DefaultSelection().SortBy(SortPopular).FilterByTag("History").FilterByAuthor("Frank Herbert")
	assert.Equal(t, FilterAuthor, sel.Mode)
	assert.Equal(t, "Frank Herbert", sel.ActiveAuthor())
	assert.Empty(t, sel.ActiveTag())
	assert.Equal(t, SortPopular, sel.Sort)

	sel = sel.FilterByText("sapiens")
	assert.Equal(t, FilterText, sel.Mode)
	assert.Empty(t, sel.ActiveAuthor())
	assert.Equal(t, []string{"sapiens"}, slugs(Filter(sampleItems(), sel)))
}

func TestNormalizeRepairsSelection(t *testing.T) {
	assert.Equal(t, DefaultSelection(), FilterSelection{}.Normalize())
	assert.Equal(t, DefaultSelection(), FilterSelection{Mode: "bogus", Sort: "weird"}.Normalize())
	assert.Equal(t,
		FilterSelection{Mode: FilterTag, Value: "x", Sort: SortRated},
		FilterSelection{Mode: FilterTag, Value: "x", Sort: SortRated}.Normalize())
	assert.Equal(t, FilterNone, FilterSelection{Mode: FilterAuthor}.Normalize().Mode)
}
