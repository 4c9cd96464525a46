// Package products binds the catalog client to the query cache: it owns the
// loaders of every query key, the long-lived subscriptions of an active
// session and the read paths used by the host API.
package products

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/mutation"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
	"github.com/vyrodovalexey/catalog-cache/internal/view"
)

// Default freshness windows.
const (
	DefaultRecordsStaleTime    = 5 * time.Minute
	DefaultCategoriesStaleTime = 10 * time.Minute
)

// ErrInactive is returned by session reads while the service is deactivated.
var ErrInactive = errors.New("catalog session is not active")

// Subscription options per query kind.
var (
	recordsOptions    = query.SubscribeOptions{RefetchOnFocus: true, RefetchOnReconnect: true}
	categoriesOptions = query.SubscribeOptions{RefetchOnReconnect: true}
	recordOptions     = query.SubscribeOptions{RefetchOnFocus: true}
)

// CacheConfig returns the query cache settings for the catalog queries.
func CacheConfig(recordsStale, categoriesStale, fetchTimeout time.Duration) query.Config {
	if recordsStale <= 0 {
		recordsStale = DefaultRecordsStaleTime
	}
	if categoriesStale <= 0 {
		categoriesStale = DefaultCategoriesStaleTime
	}
	return query.Config{
		DefaultStaleTime: recordsStale,
		StaleTimes: map[query.Kind]time.Duration{
			query.KindAllRecords:      recordsStale,
			query.KindRecordByID:      recordsStale,
			query.KindCategoryRecords: recordsStale,
			query.KindCategoryList:    categoriesStale,
		},
		FetchTimeout: fetchTimeout,
	}
}

// Service is the query coordination facade.
type Service struct {
	client    catalog.Client
	cache     *query.Cache
	mutations *mutation.Coordinator
	logger    *zap.Logger
	pageSize  int

	mu         sync.Mutex
	records    *query.Subscription
	categories *query.Subscription
}

// New creates a Service. The session starts inactive.
func New(client catalog.Client, cache *query.Cache, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = view.DefaultPageSize
	}
	return &Service{
		client:    client,
		cache:     cache,
		mutations: mutation.New(client, cache, logger),
		logger:    logger,
		pageSize:  pageSize,
	}
}

// Activate opens the session: the record list and the category list become
// observed and start loading. Activating twice is a no-op.
func (s *Service) Activate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records != nil {
		return
	}
	s.records = s.cache.Subscribe(ctx, query.AllRecords(), s.recordsLoader(), recordsOptions)
	s.categories = s.cache.Subscribe(ctx, query.CategoryList(), s.categoriesLoader(), categoriesOptions)
	s.logger.Info("catalog session activated")
}

// Deactivate closes the session subscriptions. Cached data is kept.
func (s *Service) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records == nil {
		return
	}
	s.records.Close()
	s.categories.Close()
	s.records = nil
	s.categories = nil
	s.logger.Info("catalog session deactivated")
}

// Active reports whether the session is open.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records != nil
}

func (s *Service) session() (records, categories *query.Subscription, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return nil, nil, ErrInactive
	}
	return s.records, s.categories, nil
}

// List returns the page of the cached record list selected by filter. Stale
// or failed lists still render their last good records; the page carries the
// entry status. Only a list that never loaded returns the fetch error.
func (s *Service) List(ctx context.Context, filter model.FilterState) (model.ProductPage, error) {
	if err := filter.Validate(); err != nil {
		return model.ProductPage{}, err
	}

	sub, _, err := s.session()
	if err != nil {
		return model.ProductPage{}, err
	}

	entry, err := sub.Load(ctx)
	if err != nil {
		return model.ProductPage{}, err
	}
	return s.pageOf(entry, filter)
}

// Page recomputes the page for filter from the current cache snapshot
// without waiting for any fetch.
func (s *Service) Page(ctx context.Context, filter model.FilterState) (model.ProductPage, error) {
	sub, _, err := s.session()
	if err != nil {
		return model.ProductPage{}, err
	}
	return s.pageOf(sub.Read(ctx), filter)
}

func (s *Service) pageOf(entry query.Entry, filter model.FilterState) (model.ProductPage, error) {
	records, ok := query.DataAs[[]model.Record](entry)
	if !ok && entry.Status == query.StatusError {
		return model.ProductPage{}, entry.Err
	}

	page := view.Apply(records, filter, s.pageSize)
	out := model.ProductPage{
		Records:    page.Records,
		Filter:     filter,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
		PageSize:   s.pageSize,
		Status:     entry.Status.String(),
	}
	if entry.Err != nil {
		out.Error = entry.Err.Error()
	}
	return out, nil
}

// Record returns one record, served from the cache while fresh.
func (s *Service) Record(ctx context.Context, id int) (model.Record, error) {
	if id <= 0 {
		return model.Record{}, model.ErrInvalidRecordID
	}
	return query.FetchAs(ctx, s.cache, query.RecordByID(id), s.getRecord(id))
}

// Categories returns the category names of the session.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	_, sub, err := s.session()
	if err != nil {
		return nil, err
	}

	entry, err := sub.Load(ctx)
	if err != nil {
		return nil, err
	}
	names, ok := query.DataAs[[]string](entry)
	if !ok {
		if entry.Err != nil {
			return nil, entry.Err
		}
		return nil, fmt.Errorf("categories: no data in %s entry", entry.Status)
	}
	return names, nil
}

// ByCategory returns the records of one category as served by the catalog.
func (s *Service) ByCategory(ctx context.Context, category string) ([]model.Record, error) {
	return query.FetchAs(ctx, s.cache, query.CategoryRecords(category), func(ctx context.Context) ([]model.Record, error) {
		return s.client.ListByCategory(ctx, category)
	})
}

// Update applies patch to record id through the mutation coordinator.
func (s *Service) Update(ctx context.Context, id int, patch model.RecordPatch) (model.Record, error) {
	return s.mutations.Update(ctx, id, patch)
}

// Delete removes record id through the mutation coordinator.
func (s *Service) Delete(ctx context.Context, id int) error {
	return s.mutations.Delete(ctx, id)
}

// Retry forces a refetch of the record list.
func (s *Service) Retry(ctx context.Context) (query.Entry, error) {
	sub, _, err := s.session()
	if err != nil {
		return query.Entry{}, err
	}
	return sub.Refetch(ctx)
}

// HandleEvent forwards a focus or reconnect event to the cache.
func (s *Service) HandleEvent(ev query.Event) []query.Key {
	keys := s.cache.Notify(ev)
	s.logger.Debug("environment event handled",
		zap.Stringer("event", ev),
		zap.Int("refetched", len(keys)),
	)
	return keys
}

// WatchRecords returns a subscription to the record list. The caller must
// Close it.
func (s *Service) WatchRecords(ctx context.Context) (*query.Subscription, error) {
	if !s.Active() {
		return nil, ErrInactive
	}
	return s.cache.Subscribe(ctx, query.AllRecords(), s.recordsLoader(), recordsOptions), nil
}

// WatchRecord returns a subscription to one record, refetched on focus. The
// caller must Close it.
func (s *Service) WatchRecord(ctx context.Context, id int) (*query.Subscription, error) {
	if id <= 0 {
		return nil, model.ErrInvalidRecordID
	}
	return s.cache.Subscribe(ctx, query.RecordByID(id), s.recordLoader(id), recordOptions), nil
}

func (s *Service) recordsLoader() query.Loader {
	return query.LoaderOf(s.client.ListAll)
}

func (s *Service) categoriesLoader() query.Loader {
	return query.LoaderOf(s.client.ListCategories)
}

func (s *Service) recordLoader(id int) query.Loader {
	return query.LoaderOf(s.getRecord(id))
}

func (s *Service) getRecord(id int) func(ctx context.Context) (model.Record, error) {
	return func(ctx context.Context) (model.Record, error) {
		return s.client.GetByID(ctx, id)
	}
}
