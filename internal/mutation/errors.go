package mutation

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
)

// Operation names.
const (
	OpUpdate = "update"
	OpDelete = "delete"
)

// Error is returned by every failed mutation. Kind classifies the cause with
// the catalog taxonomy; local validation failures use catalog.KindInvalid.
type Error struct {
	Op   string
	ID   int
	Kind catalog.Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s record %d: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Local reports whether the mutation was rejected before reaching the catalog.
func (e *Error) Local() bool {
	return catalog.KindOf(e.Err) == ""
}

// classify wraps err into an *Error.
func classify(op string, id int, err error) *Error {
	kind := catalog.KindOf(err)
	if kind == "" {
		kind = catalog.KindInvalid
	}
	return &Error{Op: op, ID: id, Kind: kind, Err: err}
}

// KindOf returns the Kind of a mutation error, or "" for other errors.
func KindOf(err error) catalog.Kind {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Kind
	}
	return ""
}
