package view

import (
	"sync"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

// State is the filter and selection of one session. It is safe for
// concurrent use.
type State struct {
	mu       sync.Mutex
	filter   model.FilterState
	selected int
}

// NewState returns a State showing the first page of every record.
func NewState() *State {
	return &State{filter: model.DefaultFilter()}
}

// Filter returns the current filter.
func (s *State) Filter() model.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetCategory selects a category and returns to the first page. An empty
// category selects every record.
func (s *State) SetCategory(category string) model.FilterState {
	if category == "" {
		category = model.CategoryAll
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Category = category
	s.filter.Page = 1
	return s.filter
}

// SetSearch sets the search term and returns to the first page.
func (s *State) SetSearch(term string) model.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.SearchTerm = term
	s.filter.Page = 1
	return s.filter
}

// SetPage jumps to page.
func (s *State) SetPage(page int) (model.FilterState, error) {
	if page < 1 {
		return s.Filter(), model.ErrInvalidPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Page = page
	return s.filter, nil
}

// NextPage advances one page unless the last of totalPages is shown.
func (s *State) NextPage(totalPages int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.Page >= totalPages {
		return false
	}
	s.filter.Page++
	return true
}

// PrevPage goes back one page unless the first is shown.
func (s *State) PrevPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.Page <= 1 {
		return false
	}
	s.filter.Page--
	return true
}

// ClampPage moves to the last page when the current one is past totalPages,
// e.g. after the last record of the final page was deleted.
func (s *State) ClampPage(totalPages int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if totalPages < 1 || s.filter.Page <= totalPages {
		return false
	}
	s.filter.Page = totalPages
	return true
}

// Select opens record id.
func (s *State) Select(id int) error {
	if id <= 0 {
		return model.ErrInvalidRecordID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
	return nil
}

// ClearSelection closes the open record.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = 0
}

// Selected returns the open record id.
func (s *State) Selected() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.selected != 0
}
