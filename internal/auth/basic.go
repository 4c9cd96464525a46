package auth

import (
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuthenticator checks HTTP Basic credentials against bcrypt hashes.
type BasicAuthenticator struct {
	users map[string]string // username -> bcrypt hash
}

// NewBasicAuthenticator parses "user1:hash1,user2:hash2".
func NewBasicAuthenticator(usersConfig string) (*BasicAuthenticator, error) {
	users, err := parsePairs("basic auth", usersConfig)
	if err != nil {
		return nil, err
	}
	return &BasicAuthenticator{users: users}, nil
}

// Authenticate verifies the Basic credentials of r.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	hash, exists := a.users[username]
	if !exists {
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: wrong password", ErrInvalidCredentials)
	}

	return &Identity{Method: MethodBasic, Subject: username}, nil
}

// Method returns MethodBasic.
func (a *BasicAuthenticator) Method() Method {
	return MethodBasic
}
