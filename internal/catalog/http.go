package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/model"
)

// RequestIDHeader is sent with every outgoing request.
const RequestIDHeader = "X-Request-ID"

// Operation names used in errors, logs and metrics.
const (
	OpListAll        = "list_all"
	OpGetByID        = "get_by_id"
	OpListCategories = "list_categories"
	OpListByCategory = "list_by_category"
	OpUpdate         = "update"
	OpDelete         = "delete"
)

// maxErrorBody bounds how much of a failed response body is kept in errors.
const maxErrorBody = 512

// ErrInvalidBaseURL is returned by NewHTTPClient for unusable base URLs.
var ErrInvalidBaseURL = errors.New("catalog base URL must be an absolute http(s) URL")

// HTTPClient implements Client against the catalog's HTTP JSON endpoints.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient creates a client for the catalog rooted at baseURL.
// A zero timeout leaves request deadlines entirely to the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing catalog base URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	return &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// ListAll handles GET /products.
func (c *HTTPClient) ListAll(ctx context.Context) ([]model.Record, error) {
	var records []model.Record
	if err := c.do(ctx, OpListAll, http.MethodGet, "/products", nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// GetByID handles GET /products/{id}.
func (c *HTTPClient) GetByID(ctx context.Context, id int) (model.Record, error) {
	var record *model.Record
	if err := c.do(ctx, OpGetByID, http.MethodGet, productPath(id), nil, &record); err != nil {
		return model.Record{}, err
	}
	// The public catalog answers unknown ids with 200 and an empty body.
	if record == nil {
		return model.Record{}, &Error{
			Op:   OpGetByID,
			Kind: KindNotFound,
			Err:  fmt.Errorf("no record with id %d", id),
		}
	}
	return *record, nil
}

// ListCategories handles GET /products/categories.
func (c *HTTPClient) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.do(ctx, OpListCategories, http.MethodGet, "/products/categories", nil, &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ListByCategory handles GET /products/category/{category}.
func (c *HTTPClient) ListByCategory(ctx context.Context, category string) ([]model.Record, error) {
	var records []model.Record
	path := "/products/category/" + url.PathEscape(category)
	if err := c.do(ctx, OpListByCategory, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// Update handles PUT /products/{id}. Only the provided patch fields are sent.
func (c *HTTPClient) Update(ctx context.Context, id int, patch model.RecordPatch) (model.RecordPatch, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return model.RecordPatch{}, &Error{Op: OpUpdate, Kind: KindInvalid, Err: err}
	}

	var echoed *model.RecordPatch
	if err := c.do(ctx, OpUpdate, http.MethodPut, productPath(id), body, &echoed); err != nil {
		return model.RecordPatch{}, err
	}
	if echoed == nil {
		return model.RecordPatch{}, nil
	}
	return *echoed, nil
}

// Delete handles DELETE /products/{id}. The response body is ignored.
func (c *HTTPClient) Delete(ctx context.Context, id int) error {
	return c.do(ctx, OpDelete, http.MethodDelete, productPath(id), nil, nil)
}

// do performs one request and decodes a 2xx JSON body into out when out is
// non-nil. An empty 2xx body leaves out untouched.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, body []byte, out any) (err error) {
	start := time.Now()
	defer func() {
		observeRequest(op, err, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return &Error{Op: op, Kind: KindInvalid, Err: err}
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("catalog request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Op:         op,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorBody(resp.StatusCode, data)),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Kind: KindMalformed, StatusCode: resp.StatusCode, Err: err}
	}

	return nil
}

func productPath(id int) string {
	return "/products/" + strconv.Itoa(id)
}

func errorBody(status int, data []byte) string {
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return http.StatusText(status)
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
