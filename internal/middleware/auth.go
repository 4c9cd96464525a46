package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/auth"
)

// publicPaths never require credentials.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Auth rejects requests the authenticator does not admit. Public paths and
// CORS preflight requests pass through.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			id, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				setChallenge(w, err)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			logger.Debug("authentication successful",
				zap.String("subject", id.Subject),
				zap.String("method", string(id.Method)),
			)
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// Activator opens the catalog session.
type Activator interface {
	Activate(ctx context.Context)
}

// Session opens the catalog session on the first admitted non-public
// request. Placed after Auth, it makes authentication the session gate.
func Session(activator Activator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isPublicPath(r.URL.Path) && r.Method != http.MethodOptions {
				activator.Activate(context.WithoutCancel(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isPublicPath matches public paths and their sub-paths, but not paths that
// only share a prefix (/healthz is not public).
func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	for p := range publicPaths {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func setChallenge(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="catalog"`)
	case errors.Is(err, auth.ErrInvalidAPIKey):
		w.Header().Set("WWW-Authenticate", "API-Key")
	default:
		w.Header().Set("WWW-Authenticate", `Basic realm="catalog", API-Key`)
	}
}
