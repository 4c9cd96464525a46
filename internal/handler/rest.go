package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
)

// maxBodySize bounds PUT request bodies.
const maxBodySize = 1 << 20

// RESTHandler serves the catalog over JSON.
type RESTHandler struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(c Catalog, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		catalog: c,
		logger:  logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/refetch", h.RefetchProducts).Methods(http.MethodPost)
	api.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", h.UpdateProduct).Methods(http.MethodPut)
	api.HandleFunc("/products/{id:[0-9]+}", h.DeleteProduct).Methods(http.MethodDelete)
	api.HandleFunc("/categories", h.ListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories/{category}/products", h.ListCategoryProducts).Methods(http.MethodGet)
	api.HandleFunc("/events/{event}", h.HandleEvent).Methods(http.MethodPost)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ReadyCheck handles GET /ready requests. The service is ready once the
// catalog session is active.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	if !h.catalog.Active() {
		h.writeJSON(w, http.StatusServiceUnavailable, model.NewSuccessResponse(ReadyResponse{Status: "inactive"}))
		return
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(ReadyResponse{Status: "ready"}))
}

// ListProducts handles GET /api/v1/products?category=&search=&page= requests.
func (h *RESTHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err, "list products")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(page))
}

// GetProduct handles GET /api/v1/products/{id} requests.
func (h *RESTHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	record, err := h.catalog.Record(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "get product")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(record))
}

// UpdateProduct handles PUT /api/v1/products/{id} requests.
func (h *RESTHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var patch model.RecordPatch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&patch); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.catalog.Update(r.Context(), id, patch)
	if err != nil {
		h.handleServiceError(w, err, "update product")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(record))
}

// DeleteProduct handles DELETE /api/v1/products/{id} requests.
func (h *RESTHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, err, "delete product")
		return
	}

	h.writeJSON(w, http.StatusNoContent, nil)
}

// RefetchProducts handles POST /api/v1/products/refetch requests: a manual
// retry of the record list.
func (h *RESTHandler) RefetchProducts(w http.ResponseWriter, r *http.Request) {
	entry, err := h.catalog.Retry(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "refetch products")
		return
	}

	response := RefetchResponse{Status: entry.Status.String()}
	if !entry.LastFetchedAt.IsZero() {
		response.LastFetchedAt = entry.LastFetchedAt.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ListCategories handles GET /api/v1/categories requests.
func (h *RESTHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	names, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "list categories")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(names))
}

// ListCategoryProducts handles GET /api/v1/categories/{category}/products.
func (h *RESTHandler) ListCategoryProducts(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]

	records, err := h.catalog.ByCategory(r.Context(), category)
	if err != nil {
		h.handleServiceError(w, err, "list category products")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(records))
}

// HandleEvent handles POST /api/v1/events/{focus|reconnect}.
func (h *RESTHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["event"]
	ev, ok := query.ParseEvent(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown event "+strconv.Quote(name))
		return
	}

	keys := h.catalog.HandleEvent(ev)
	refetched := make([]string, 0, len(keys))
	for _, key := range keys {
		refetched = append(refetched, key.String())
	}

	h.writeJSON(w, http.StatusAccepted, model.NewSuccessResponse(EventResponse{
		Event:     ev.String(),
		Refetched: refetched,
	}))
}

// parseFilter reads the filter query parameters. A missing page is page 1.
func parseFilter(r *http.Request) (model.FilterState, error) {
	q := r.URL.Query()
	filter := model.DefaultFilter()

	if category := strings.TrimSpace(q.Get("category")); category != "" {
		filter.Category = category
	}
	filter.SearchTerm = q.Get("search")

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, model.ErrInvalidPage
		}
		filter.Page = page
	}
	return filter, nil
}

func (h *RESTHandler) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, model.ErrInvalidRecordID.Error())
		return 0, false
	}
	return id, true
}

// handleServiceError writes the response for a failed catalog operation.
func (h *RESTHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("catalog operation failed", zap.String("operation", operation), zap.Error(err))
	} else {
		h.logger.Debug("catalog operation rejected", zap.String("operation", operation), zap.Error(err))
	}
	h.writeError(w, status, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
