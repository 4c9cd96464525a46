// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/auth"
	"github.com/vyrodovalexey/catalog-cache/internal/config"
	"github.com/vyrodovalexey/catalog-cache/internal/handler"
	"github.com/vyrodovalexey/catalog-cache/internal/middleware"
	"github.com/vyrodovalexey/catalog-cache/internal/products"
)

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	router        *mux.Router
	handler       http.Handler
	config        *config.Config
	logger        *zap.Logger
	catalog       *products.Service
	authenticator auth.Authenticator
	wsHandler     *handler.WebSocketHandler
}

// New creates a new Server instance. A nil authenticator serves without
// authentication and opens the catalog session on Start; otherwise the
// session opens with the first authenticated request.
func New(cfg *config.Config, logger *zap.Logger, svc *products.Service, authenticator auth.Authenticator) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		config:        cfg,
		logger:        logger,
		catalog:       svc,
		authenticator: authenticator,
	}

	s.setupRoutes()
	s.setupMiddleware()
	s.setupHTTPServer()

	return s
}

// setupMiddleware wraps the router. Metrics runs inside the router so that
// it sees the matched route template; everything else wraps the router so
// that preflight and auth apply to unmatched paths too.
func (s *Server) setupMiddleware() {
	allowedOrigins := []string{"*"}
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		auth.APIKeyHeader,
		middleware.RequestIDHeader,
	}

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	chain := []middleware.Middleware{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.CORS(allowedOrigins, allowedMethods, allowedHeaders),
	}
	if s.authenticator != nil {
		chain = append(chain,
			middleware.Auth(s.authenticator, s.logger),
			middleware.Session(s.catalog),
		)
	}
	// Logging runs after Auth so that it sees the caller identity.
	chain = append(chain, middleware.Logging(s.logger))

	s.handler = middleware.Chain(chain...)(s.router)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	restHandler := handler.NewRESTHandler(s.catalog, s.logger)
	restHandler.RegisterRoutes(s.router)

	s.wsHandler = handler.NewWebSocketHandler(s.catalog, s.config.SearchDebounce, s.logger)
	s.wsHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.FetchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start opens the catalog session when no authentication is configured and
// serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("auth_enabled", s.authenticator != nil),
	)

	if s.authenticator == nil {
		s.catalog.Activate(context.Background())
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown closes websocket sessions, drains HTTP requests and closes the
// catalog session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	err := s.httpServer.Shutdown(ctx)
	s.catalog.Deactivate()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}
