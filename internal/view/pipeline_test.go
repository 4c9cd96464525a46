package view

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

func numbered(n int) []model.Record {
	records := make([]model.Record, n)
	for i := range records {
		records[i] = model.Record{
			ID:       i + 1,
			Title:    fmt.Sprintf("Item %d", i+1),
			Category: "misc",
		}
	}
	return records
}

func ids(records []model.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestApply_SearchMatchesTitle(t *testing.T) {
	records := []model.Record{
		{ID: 1, Title: "Red Shirt", Category: "clothing"},
		{ID: 2, Title: "Blue Mug", Category: "kitchen"},
	}
	filter := model.FilterState{Category: model.CategoryAll, SearchTerm: "red", Page: 1}

	page := Apply(records, filter, DefaultPageSize)

	assert.Equal(t, []int{1}, ids(page.Records))
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
}

func TestApply_Pagination(t *testing.T) {
	testCases := []struct {
		name      string
		count     int
		page      int
		wantIDs   []int
		wantPages int
	}{
		{name: "first page", count: 25, page: 1, wantIDs: ids(numbered(12)), wantPages: 3},
		{name: "last partial page", count: 25, page: 3, wantIDs: []int{25}, wantPages: 3},
		{name: "past the end", count: 25, page: 4, wantIDs: []int{}, wantPages: 3},
		{name: "exact multiple", count: 24, page: 2, wantIDs: ids(numbered(24)[12:]), wantPages: 2},
		{name: "empty input", count: 0, page: 1, wantIDs: []int{}, wantPages: 0},
		{name: "page zero", count: 5, page: 0, wantIDs: []int{}, wantPages: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			filter := model.FilterState{Category: model.CategoryAll, Page: tc.page}

			page := Apply(numbered(tc.count), filter, 12)

			assert.Equal(t, tc.wantIDs, ids(page.Records))
			assert.Equal(t, tc.count, page.TotalCount)
			assert.Equal(t, tc.wantPages, page.TotalPages)
		})
	}
}

func TestApply_Filters(t *testing.T) {
	records := []model.Record{
		{ID: 1, Title: "Cotton Tee", Description: "soft", Category: "men's clothing"},
		{ID: 2, Title: "Gold Ring", Description: "shiny", Category: "jewelery"},
		{ID: 3, Title: "SSD", Description: "fast storage", Category: "electronics"},
		{ID: 4, Title: "Rain Jacket", Description: "waterproof", Category: "women's clothing"},
	}

	testCases := []struct {
		name   string
		filter model.FilterState
		want   []int
	}{
		{name: "all", filter: model.FilterState{Category: model.CategoryAll, Page: 1}, want: []int{1, 2, 3, 4}},
		{name: "empty category means all", filter: model.FilterState{Page: 1}, want: []int{1, 2, 3, 4}},
		{name: "exact category", filter: model.FilterState{Category: "jewelery", Page: 1}, want: []int{2}},
		{name: "category is case sensitive", filter: model.FilterState{Category: "Jewelery", Page: 1}, want: []int{}},
		{name: "category is not a prefix match", filter: model.FilterState{Category: "men's", Page: 1}, want: []int{}},
		{name: "search description", filter: model.FilterState{Category: model.CategoryAll, SearchTerm: "STORAGE", Page: 1}, want: []int{3}},
		{name: "search category", filter: model.FilterState{Category: model.CategoryAll, SearchTerm: "clothing", Page: 1}, want: []int{1, 4}},
		{name: "search is trimmed", filter: model.FilterState{Category: model.CategoryAll, SearchTerm: "  ring ", Page: 1}, want: []int{2}},
		{name: "blank search matches all", filter: model.FilterState{Category: model.CategoryAll, SearchTerm: "   ", Page: 1}, want: []int{1, 2, 3, 4}},
		{name: "category and search", filter: model.FilterState{Category: "women's clothing", SearchTerm: "tee", Page: 1}, want: []int{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := Apply(records, tc.filter, DefaultPageSize)

			assert.Equal(t, tc.want, ids(page.Records))
			assert.Equal(t, len(tc.want), page.TotalCount)
		})
	}
}

func TestApply_IsPure(t *testing.T) {
	records := numbered(30)
	snapshot := append([]model.Record(nil), records...)
	filter := model.FilterState{Category: model.CategoryAll, SearchTerm: "1", Page: 1}

	first := Apply(records, filter, 5)
	second := Apply(records, filter, 5)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, records)
}

func TestApply_NonPositivePageSizeUsesDefault(t *testing.T) {
	page := Apply(numbered(20), model.DefaultFilter(), 0)

	require.Len(t, page.Records, DefaultPageSize)
	assert.Equal(t, 2, page.TotalPages)
}
