package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies a catalog failure by cause.
type Kind string

// Failure kinds.
const (
	KindNetwork   Kind = "network"
	KindNotFound  Kind = "not_found"
	KindInvalid   Kind = "validation"
	KindServer    Kind = "server"
	KindMalformed Kind = "malformed"
)

// Sentinel errors, one per Kind. Every *Error matches the sentinel of its Kind
// under errors.Is.
var (
	ErrNetwork           = errors.New("catalog unreachable")
	ErrNotFound          = errors.New("record not found")
	ErrValidation        = errors.New("request rejected by catalog")
	ErrServer            = errors.New("catalog server error")
	ErrMalformedResponse = errors.New("malformed catalog response")
)

var kindSentinels = map[Kind]error{
	KindNetwork:   ErrNetwork,
	KindNotFound:  ErrNotFound,
	KindInvalid:   ErrValidation,
	KindServer:    ErrServer,
	KindMalformed: ErrMalformedResponse,
}

// Error is returned by every Client operation that fails.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog %s: %s (status %d): %v", e.Op, kindSentinels[e.Kind], e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog %s: %s: %v", e.Op, kindSentinels[e.Kind], e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the Kind of err, or "" when err did not come from the catalog.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

// kindForStatus maps a non-2xx HTTP status onto a Kind. Informational and
// unfollowed redirect replies carry no usable payload and read as malformed.
func kindForStatus(status int) Kind {
	switch {
	case status < 400:
		return KindMalformed
	case status == 404:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindInvalid
	default:
		return KindServer
	}
}
