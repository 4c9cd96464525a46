package model

import "errors"

// CategoryAll disables category filtering.
const CategoryAll = "all"

// ErrInvalidPage is returned for page numbers below 1.
var ErrInvalidPage = errors.New("page must be 1 or greater")

// FilterState is the caller-owned filter, search and page selection applied
// to the cached record list.
type FilterState struct {
	Category   string `json:"category"`
	SearchTerm string `json:"search"`
	Page       int    `json:"page"`
}

// DefaultFilter returns the filter that shows the first page of every record.
func DefaultFilter() FilterState {
	return FilterState{
		Category: CategoryAll,
		Page:     1,
	}
}

// Validate checks if the filter can be handed to the view pipeline.
func (f FilterState) Validate() error {
	if f.Page < 1 {
		return ErrInvalidPage
	}
	return nil
}
