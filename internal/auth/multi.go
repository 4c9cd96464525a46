package auth

import (
	"errors"
	"net/http"
)

// MultiAuthenticator tries its authenticators in order. A missing credential
// moves on to the next one; a rejected credential fails immediately.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator chains authenticators.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{authenticators: authenticators}
}

// Authenticate returns the first accepted identity.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	for _, authenticator := range a.authenticators {
		id, err := authenticator.Authenticate(r)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
	}
	return nil, ErrUnauthenticated
}

// Method returns MethodMulti.
func (a *MultiAuthenticator) Method() Method {
	return MethodMulti
}
