package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

func TestState_Defaults(t *testing.T) {
	s := NewState()

	assert.Equal(t, model.DefaultFilter(), s.Filter())
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestState_FilterChangesResetPage(t *testing.T) {
	s := NewState()
	_, err := s.SetPage(3)
	require.NoError(t, err)

	f := s.SetCategory("jewelery")
	assert.Equal(t, "jewelery", f.Category)
	assert.Equal(t, 1, f.Page)

	_, err = s.SetPage(2)
	require.NoError(t, err)
	f = s.SetSearch("ring")
	assert.Equal(t, "ring", f.SearchTerm)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, "jewelery", f.Category)

	f = s.SetCategory("")
	assert.Equal(t, model.CategoryAll, f.Category)
}

func TestState_SetPageRejectsInvalid(t *testing.T) {
	s := NewState()

	f, err := s.SetPage(0)

	assert.ErrorIs(t, err, model.ErrInvalidPage)
	assert.Equal(t, 1, f.Page)
}

func TestState_PagingIsClamped(t *testing.T) {
	s := NewState()

	assert.False(t, s.PrevPage())
	assert.True(t, s.NextPage(2))
	assert.False(t, s.NextPage(2))
	assert.Equal(t, 2, s.Filter().Page)
	assert.True(t, s.PrevPage())
	assert.Equal(t, 1, s.Filter().Page)
	assert.False(t, s.NextPage(0))
}

func TestState_ClampPage(t *testing.T) {
	s := NewState()
	_, err := s.SetPage(5)
	require.NoError(t, err)

	assert.False(t, s.ClampPage(0))
	assert.True(t, s.ClampPage(3))
	assert.Equal(t, 3, s.Filter().Page)
	assert.False(t, s.ClampPage(3))
}

func TestState_Selection(t *testing.T) {
	s := NewState()

	assert.ErrorIs(t, s.Select(0), model.ErrInvalidRecordID)
	require.NoError(t, s.Select(7))
	id, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, 7, id)

	s.ClearSelection()
	_, ok = s.Selected()
	assert.False(t, ok)
}
