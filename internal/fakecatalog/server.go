// Package fakecatalog serves an in-memory catalog that speaks the same HTTP
// JSON dialect as the public catalog service. It backs local development and
// the HTTP-level tests of the catalog client and the host API.
package fakecatalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/store"
)

// Route templates, also used as keys for faults and request counts.
const (
	RouteProducts   = "/products"
	RouteProduct    = "/products/{id:[0-9]+}"
	RouteCategories = "/products/categories"
	RouteCategory   = "/products/category/{category}"
)

// Server is an in-memory catalog service.
type Server struct {
	store  store.Store
	logger *zap.Logger
	router *mux.Router

	mu      sync.Mutex
	faults  map[string]int
	counts  map[string]int
	latency time.Duration
	gate    chan struct{}
}

// New creates a Server backed by s.
func New(s store.Store, logger *zap.Logger) *Server {
	srv := &Server{
		store:  s,
		logger: logger,
		router: mux.NewRouter(),
		faults: make(map[string]int),
		counts: make(map[string]int),
	}
	srv.registerRoutes()
	return srv
}

// Handler returns the HTTP handler of the fake catalog.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(s.instrument)
	s.router.HandleFunc(RouteProducts, s.listProducts).Methods(http.MethodGet)
	s.router.HandleFunc(RouteProducts, s.createProduct).Methods(http.MethodPost)
	s.router.HandleFunc(RouteCategories, s.listCategories).Methods(http.MethodGet)
	s.router.HandleFunc(RouteCategory, s.listByCategory).Methods(http.MethodGet)
	s.router.HandleFunc(RouteProduct, s.getProduct).Methods(http.MethodGet)
	s.router.HandleFunc(RouteProduct, s.updateProduct).Methods(http.MethodPut)
	s.router.HandleFunc(RouteProduct, s.deleteProduct).Methods(http.MethodDelete)
}

// SetFault makes every request to method+route answer with status until
// ClearFaults is called.
func (s *Server) SetFault(method, route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+route] = status
}

// ClearFaults removes every configured fault.
func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]int)
}

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Hold blocks every subsequent request until the returned release func is
// called. Calling release more than once is safe.
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Count returns how many requests reached method+route.
func (s *Server) Count(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+route]
}

// instrument counts requests, applies latency, gates and faults.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		key := r.Method + " " + route

		s.mu.Lock()
		s.counts[key]++
		status, faulty := s.faults[key]
		latency := s.latency
		gate := s.gate
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if latency > 0 {
			time.Sleep(latency)
		}

		if faulty {
			s.logger.Debug("fake catalog fault", zap.String("route", key), zap.Int("status", status))
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Categories(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) listByCategory(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListByCategory(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// getProduct answers unknown ids with 200 and an empty body, as the public
// catalog does.
func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	record, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var input model.Record
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// The store assigns the id.
	probe := input
	probe.ID = 1
	if err := probe.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	record, err := s.store.Create(r.Context(), &input)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	var patch model.RecordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := patch.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	record, err := s.store.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	record, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("fake catalog store failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
