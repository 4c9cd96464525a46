// Package catalog provides the client for the remote catalog service.
package catalog

import (
	"context"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

//go:generate mockgen -source=client.go -destination=mock_client.go -package=catalog

// Client defines the operations the cache layer needs from the catalog service.
// Implementations never retry; failures are returned as *Error.
type Client interface {
	// ListAll returns every record in catalog order.
	ListAll(ctx context.Context) ([]model.Record, error)

	// GetByID returns a single record.
	GetByID(ctx context.Context, id int) (model.Record, error)

	// ListCategories returns the category names.
	ListCategories(ctx context.Context) ([]string, error)

	// ListByCategory returns the records of one category.
	ListByCategory(ctx context.Context, category string) ([]model.Record, error)

	// Update sends a partial update and returns the fields echoed by the service.
	Update(ctx context.Context, id int, patch model.RecordPatch) (model.RecordPatch, error)

	// Delete removes a record.
	Delete(ctx context.Context, id int) error
}
