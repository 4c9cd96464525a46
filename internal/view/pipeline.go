// Package view derives the visible page of records from the cached record
// list and the caller's filter, and holds the per-session selection state.
package view

import (
	"strings"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

// DefaultPageSize is the number of records per page.
const DefaultPageSize = 12

// Page is the output of Apply.
type Page struct {
	Records    []model.Record
	TotalCount int
	TotalPages int
}

// Apply filters records by category and search term and returns the requested
// page. The page number is not clamped: a page past the end is empty. Apply
// never modifies records and always returns the same output for equal inputs.
func Apply(records []model.Record, filter model.FilterState, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	term := strings.ToLower(strings.TrimSpace(filter.SearchTerm))
	matched := make([]model.Record, 0, len(records))
	for _, r := range records {
		if filter.Category != "" && filter.Category != model.CategoryAll && r.Category != filter.Category {
			continue
		}
		if term != "" && !matches(r, term) {
			continue
		}
		matched = append(matched, r)
	}

	total := len(matched)
	page := Page{
		Records:    []model.Record{},
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}

	if filter.Page < 1 {
		return page
	}
	start := (filter.Page - 1) * pageSize
	if start >= total {
		return page
	}
	end := min(start+pageSize, total)
	page.Records = matched[start:end]
	return page
}

func matches(r model.Record, term string) bool {
	return strings.Contains(strings.ToLower(r.Title), term) ||
		strings.Contains(strings.ToLower(r.Description), term) ||
		strings.Contains(strings.ToLower(r.Category), term)
}
