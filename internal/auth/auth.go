// Package auth gates access to the catalog session. A request is admitted
// when one of the configured credential checks accepts it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Method names a credential check.
type Method string

// Supported methods.
const (
	MethodNone   Method = "none"
	MethodBasic  Method = "basic"
	MethodAPIKey Method = "apikey"
	MethodMulti  Method = "multi"
)

// Identity is the caller admitted by an Authenticator.
type Identity struct {
	Method  Method
	Subject string
}

// Authenticator validates a request and returns the caller identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownMethod      = errors.New("unknown auth method")
)

type contextKey string

const identityKey contextKey = "identity"

// FromContext retrieves the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity stores id in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// New builds the Authenticator for mode. Mode "none" returns nil: every
// request is admitted.
func New(mode, basicUsers, apiKeys string) (Authenticator, error) {
	switch Method(mode) {
	case MethodNone, "":
		return nil, nil
	case MethodBasic:
		return NewBasicAuthenticator(basicUsers)
	case MethodAPIKey:
		return NewAPIKeyAuthenticator(apiKeys)
	case MethodMulti:
		var chain []Authenticator
		if basicUsers != "" {
			basic, err := NewBasicAuthenticator(basicUsers)
			if err != nil {
				return nil, err
			}
			chain = append(chain, basic)
		}
		if apiKeys != "" {
			keys, err := NewAPIKeyAuthenticator(apiKeys)
			if err != nil {
				return nil, err
			}
			chain = append(chain, keys)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("multi auth: no credentials configured")
		}
		return NewMultiAuthenticator(chain...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, mode)
	}
}

// parsePairs splits a "left:right,left:right" list. Blank entries are
// skipped; an entry without a colon or with an empty side is rejected.
func parsePairs(kind, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: config must not be empty", kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%s: invalid entry format, expected name:value", kind)
		}
		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%s: entry sides must not be empty", kind)
		}
		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%s: no valid entries found", kind)
	}
	return pairs, nil
}
