// Package store provides the record storage behind the local fake catalog service.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

// Store errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrInvalidID = errors.New("invalid record ID")
	ErrNilRecord = errors.New("record cannot be nil")
)

// Store defines the interface for record storage operations.
type Store interface {
	// List returns all records ordered by ID.
	List(ctx context.Context) ([]model.Record, error)

	// Get retrieves a record by its ID.
	Get(ctx context.Context, id int) (*model.Record, error)

	// Categories returns the distinct categories in first-seen order.
	Categories(ctx context.Context) ([]string, error)

	// ListByCategory returns the records of one category ordered by ID.
	ListByCategory(ctx context.Context, category string) ([]model.Record, error)

	// Create adds a record and returns it with a generated ID.
	Create(ctx context.Context, record *model.Record) (*model.Record, error)

	// Update applies a partial update to an existing record.
	Update(ctx context.Context, id int, patch model.RecordPatch) (*model.Record, error)

	// Delete removes a record by its ID and returns the removed record.
	Delete(ctx context.Context, id int) (*model.Record, error)
}
