// Package handler provides the HTTP and websocket handlers of the host API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/mutation"
	"github.com/vyrodovalexey/catalog-cache/internal/products"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
)

// Version is the application version.
const Version = "1.0.0"

// Catalog is the query coordination surface the handlers serve.
// *products.Service implements it.
type Catalog interface {
	Active() bool
	List(ctx context.Context, filter model.FilterState) (model.ProductPage, error)
	Page(ctx context.Context, filter model.FilterState) (model.ProductPage, error)
	Record(ctx context.Context, id int) (model.Record, error)
	Categories(ctx context.Context) ([]string, error)
	ByCategory(ctx context.Context, category string) ([]model.Record, error)
	Update(ctx context.Context, id int, patch model.RecordPatch) (model.Record, error)
	Delete(ctx context.Context, id int) error
	Retry(ctx context.Context) (query.Entry, error)
	HandleEvent(ev query.Event) []query.Key
	WatchRecords(ctx context.Context) (*query.Subscription, error)
	WatchRecord(ctx context.Context, id int) (*query.Subscription, error)
}

var _ Catalog = (*products.Service)(nil)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// RefetchResponse reports the record list entry after a manual refetch.
type RefetchResponse struct {
	Status        string `json:"status"`
	LastFetchedAt string `json:"last_fetched_at,omitempty"`
}

// EventResponse lists the keys an environment event refetched.
type EventResponse struct {
	Event     string   `json:"event"`
	Refetched []string `json:"refetched"`
}

// localValidation are the errors raised before any catalog call.
var localValidation = []error{
	model.ErrInvalidRecordID,
	model.ErrInvalidPage,
	model.ErrEmptyTitle,
	model.ErrTitleTooLong,
	model.ErrNegativePrice,
	model.ErrDescriptionLong,
	model.ErrInvalidImage,
	model.ErrEmptyPatch,
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, products.ErrInactive):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var merr *mutation.Error
	if errors.As(err, &merr) && merr.Local() {
		return http.StatusBadRequest
	}

	switch catalog.KindOf(err) {
	case catalog.KindNotFound:
		return http.StatusNotFound
	case catalog.KindInvalid:
		return http.StatusUnprocessableEntity
	case catalog.KindNetwork, catalog.KindServer, catalog.KindMalformed:
		return http.StatusBadGateway
	}

	for _, target := range localValidation {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
