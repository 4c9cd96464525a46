package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the API key.
const APIKeyHeader = "X-API-Key"

// APIKeyQueryParam carries the API key on websocket upgrades, where browsers
// cannot set headers.
const APIKeyQueryParam = "api_key"

// APIKeyAuthenticator checks API keys with constant-time comparison.
type APIKeyAuthenticator struct {
	keys map[string]string // key -> client name
}

// NewAPIKeyAuthenticator parses "key1:name1,key2:name2".
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	keys, err := parsePairs("apikey auth", keysConfig)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate verifies the API key of r, taken from the header or, for
// websocket upgrades, the query string.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		apiKey = r.URL.Query().Get(APIKeyQueryParam)
	}
	if apiKey == "" {
		return nil, ErrUnauthenticated
	}

	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			return &Identity{Method: MethodAPIKey, Subject: name}, nil
		}
	}

	return nil, ErrInvalidAPIKey
}

// Method returns MethodAPIKey.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
