package model

import "time"

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ProductPage is the derived view of the cached record list for one filter.
// Status and Error describe the backing cache entry so that a client can keep
// rendering stale records while offering a retry.
type ProductPage struct {
	Records    []Record    `json:"records"`
	Filter     FilterState `json:"filter"`
	TotalCount int         `json:"total_count"`
	TotalPages int         `json:"total_pages"`
	PageSize   int         `json:"page_size"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
}

// Session message types.
const (
	WSMessageTypeCategory = "category"
	WSMessageTypeSearch   = "search"
	WSMessageTypePage     = "page"
	WSMessageTypeSelect   = "select"
	WSMessageTypeFocus    = "focus"
	WSMessageTypeView     = "view"
	WSMessageTypeError    = "error"
)

// SessionMessage is sent by a websocket client to drive its session state.
type SessionMessage struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Page  int    `json:"page,omitempty"`
	ID    int    `json:"id,omitempty"`
}

// ViewMessage is pushed to a websocket client whenever its view changes.
type ViewMessage struct {
	Type      string       `json:"type"`
	View      *ProductPage `json:"view,omitempty"`
	Selected  *Record      `json:"selected,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewViewMessage creates a view message for the given page.
func NewViewMessage(page *ProductPage, selected *Record) ViewMessage {
	return ViewMessage{
		Type:      WSMessageTypeView,
		View:      page,
		Selected:  selected,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage creates an error message for a websocket client.
func NewErrorMessage(msg string) ViewMessage {
	return ViewMessage{
		Type:      WSMessageTypeError,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}
