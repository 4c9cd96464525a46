package fakecatalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/store"
)

func newTestServer() *Server {
	return New(store.NewMemoryStore(SampleRecords(6)...), zap.NewNop())
}

func TestServer_ListProducts(t *testing.T) {
	// Arrange
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()

	// Act
	srv.Handler().ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var records []model.Record
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 6 {
		t.Errorf("records = %d, want 6", len(records))
	}
	if got := srv.Count(http.MethodGet, RouteProducts); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestServer_CategoriesRouteIsNotAnID(t *testing.T) {
	// Arrange
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/products/categories", nil)
	rec := httptest.NewRecorder()

	// Act
	srv.Handler().ServeHTTP(rec, req)

	// Assert
	var categories []string
	if err := json.NewDecoder(rec.Body).Decode(&categories); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(categories) != 4 {
		t.Errorf("categories = %v, want 4 entries", categories)
	}
}

func TestServer_GetUnknownProductReturnsEmptyBody(t *testing.T) {
	// Arrange
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/products/999", nil)
	rec := httptest.NewRecorder()

	// Act
	srv.Handler().ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestServer_UpdateAndDelete(t *testing.T) {
	// Arrange
	srv := newTestServer()

	// Act
	upd := httptest.NewRequest(http.MethodPut, "/products/2", strings.NewReader(`{"price":1.5}`))
	updRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(updRec, upd)

	del := httptest.NewRequest(http.MethodDelete, "/products/2", nil)
	delRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(delRec, del)

	again := httptest.NewRequest(http.MethodDelete, "/products/2", nil)
	againRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(againRec, again)

	// Assert
	var updated model.Record
	if err := json.NewDecoder(updRec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Price != 1.5 || updated.ID != 2 {
		t.Errorf("updated = %+v", updated)
	}
	if delRec.Code != http.StatusOK {
		t.Errorf("delete status = %d, want %d", delRec.Code, http.StatusOK)
	}
	if againRec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", againRec.Code, http.StatusNotFound)
	}
}

func TestServer_CreateProduct(t *testing.T) {
	// Arrange
	srv := newTestServer()
	body := `{"title":"New lamp","price":12.5,"category":"electronics"}`

	// Act
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body)))
	invalid := httptest.NewRecorder()
	srv.Handler().ServeHTTP(invalid, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"price":1}`)))

	// Assert
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var created model.Record
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID <= 0 || created.Title != "New lamp" {
		t.Errorf("created = %+v", created)
	}
	if invalid.Code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want %d", invalid.Code, http.StatusBadRequest)
	}
}

func TestServer_UpdateRejectsInvalidPatch(t *testing.T) {
	// Arrange
	srv := newTestServer()
	req := httptest.NewRequest(http.MethodPut, "/products/1", strings.NewReader(`{"price":-3}`))
	rec := httptest.NewRecorder()

	// Act
	srv.Handler().ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_Faults(t *testing.T) {
	// Arrange
	srv := newTestServer()
	srv.SetFault(http.MethodGet, RouteProducts, http.StatusServiceUnavailable)

	// Act
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))
	srv.ClearFaults()
	okRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(okRec, httptest.NewRequest(http.MethodGet, "/products", nil))

	// Assert
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("faulted status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if okRec.Code != http.StatusOK {
		t.Errorf("status after ClearFaults = %d, want %d", okRec.Code, http.StatusOK)
	}
	if got := srv.Count(http.MethodGet, RouteProducts); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestSampleRecords(t *testing.T) {
	// Act
	records := SampleRecords(25)

	// Assert
	if len(records) != 25 {
		t.Fatalf("len = %d, want 25", len(records))
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			t.Errorf("record %d invalid: %v", r.ID, err)
		}
	}
}
