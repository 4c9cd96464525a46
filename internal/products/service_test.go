package products_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
	"github.com/vyrodovalexey/catalog-cache/internal/fakecatalog"
	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/products"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
	"github.com/vyrodovalexey/catalog-cache/internal/store"
)

type fixture struct {
	svc   *products.Service
	fake  *fakecatalog.Server
	cache *query.Cache
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := fakecatalog.New(store.NewMemoryStore(fakecatalog.SampleRecords(20)...), zap.NewNop())
	ts := httptest.NewServer(fake.Handler())
	t.Cleanup(ts.Close)

	client, err := catalog.NewHTTPClient(ts.URL, 2*time.Second, zap.NewNop())
	require.NoError(t, err)

	clock := clockwork.NewFakeClock()
	cache := query.New(products.CacheConfig(0, 0, 2*time.Second), clock, zap.NewNop())
	svc := products.New(client, cache, 12, zap.NewNop())
	t.Cleanup(svc.Deactivate)

	return &fixture{svc: svc, fake: fake, cache: cache, clock: clock}
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	f.svc.Activate(context.Background())
	require.Eventually(t, func() bool {
		all, _ := f.cache.Get(query.AllRecords())
		cats, _ := f.cache.Get(query.CategoryList())
		return all.Status == query.StatusFresh && cats.Status == query.StatusFresh
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCacheConfig(t *testing.T) {
	cfg := products.CacheConfig(0, 0, time.Second)

	assert.Equal(t, 5*time.Minute, cfg.StaleTimes[query.KindAllRecords])
	assert.Equal(t, 5*time.Minute, cfg.StaleTimes[query.KindRecordByID])
	assert.Equal(t, 10*time.Minute, cfg.StaleTimes[query.KindCategoryList])
	assert.Equal(t, time.Second, cfg.FetchTimeout)
}

func TestService_InactiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.List(ctx, model.DefaultFilter())
	assert.ErrorIs(t, err, products.ErrInactive)

	_, err = f.svc.Categories(ctx)
	assert.ErrorIs(t, err, products.ErrInactive)

	_, err = f.svc.Retry(ctx)
	assert.ErrorIs(t, err, products.ErrInactive)

	_, err = f.svc.WatchRecords(ctx)
	assert.ErrorIs(t, err, products.ErrInactive)

	assert.False(t, f.svc.Active())
	assert.Equal(t, 0, f.fake.Count(http.MethodGet, fakecatalog.RouteProducts))
}

func TestService_ActivateLoadsOnce(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.activate(t)

	// Act
	f.svc.Activate(context.Background())
	page, err := f.svc.List(context.Background(), model.DefaultFilter())
	require.NoError(t, err)
	again, err := f.svc.List(context.Background(), model.DefaultFilter())
	require.NoError(t, err)

	// Assert
	assert.True(t, f.svc.Active())
	assert.Len(t, page.Records, 12)
	assert.Equal(t, 20, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, "fresh", page.Status)
	assert.Equal(t, page, again)
	assert.Equal(t, 1, f.fake.Count(http.MethodGet, fakecatalog.RouteProducts))
	assert.Equal(t, 1, f.fake.Count(http.MethodGet, fakecatalog.RouteCategories))
}

func TestService_ListFilters(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	page, err := f.svc.List(context.Background(), model.FilterState{Category: "jewelery", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	for _, r := range page.Records {
		assert.Equal(t, "jewelery", r.Category)
	}

	page, err = f.svc.List(context.Background(), model.FilterState{Category: model.CategoryAll, SearchTerm: "product 17", Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, 17, page.Records[0].ID)

	_, err = f.svc.List(context.Background(), model.FilterState{Category: model.CategoryAll, Page: 0})
	assert.ErrorIs(t, err, model.ErrInvalidPage)
}

func TestService_FailedFirstLoadThenRetry(t *testing.T) {
	f := newFixture(t)
	f.fake.SetFault(http.MethodGet, fakecatalog.RouteProducts, http.StatusInternalServerError)
	f.svc.Activate(context.Background())

	_, err := f.svc.List(context.Background(), model.DefaultFilter())
	require.ErrorIs(t, err, catalog.ErrServer)

	f.fake.ClearFaults()
	entry, err := f.svc.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, query.StatusFresh, entry.Status)

	page, err := f.svc.List(context.Background(), model.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, 20, page.TotalCount)
}

func TestService_StaleWhileError(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	f.fake.SetFault(http.MethodGet, fakecatalog.RouteProducts, http.StatusServiceUnavailable)
	_, err := f.svc.Retry(context.Background())
	require.ErrorIs(t, err, catalog.ErrServer)

	page, err := f.svc.List(context.Background(), model.DefaultFilter())

	require.NoError(t, err)
	assert.Equal(t, "error", page.Status)
	assert.NotEmpty(t, page.Error)
	assert.Equal(t, 20, page.TotalCount)
}

func TestService_UpdateReflectsInList(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	title := "Renamed product"

	updated, err := f.svc.Update(context.Background(), 3, model.RecordPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, "electronics", updated.Category)

	page, err := f.svc.Page(context.Background(), model.FilterState{Category: model.CategoryAll, SearchTerm: "renamed", Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, 3, page.Records[0].ID)

	record, err := f.svc.Record(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, title, record.Title)
}

func TestService_DeleteRemovesFromList(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	require.NoError(t, f.svc.Delete(context.Background(), 5))

	page, err := f.svc.Page(context.Background(), model.FilterState{Category: model.CategoryAll, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 19, page.TotalCount)
	for _, r := range page.Records {
		assert.NotEqual(t, 5, r.ID)
	}

	_, err = f.svc.Record(context.Background(), 5)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_FailedDeleteKeepsList(t *testing.T) {
	f := newFixture(t)
	f.activate(t)
	before, _ := f.cache.Get(query.AllRecords())
	f.fake.SetFault(http.MethodDelete, fakecatalog.RouteProduct, http.StatusBadGateway)

	err := f.svc.Delete(context.Background(), 5)

	require.ErrorIs(t, err, catalog.ErrServer)
	after, _ := f.cache.Get(query.AllRecords())
	assert.Equal(t, before, after)
}

func TestService_RecordAndByCategory(t *testing.T) {
	f := newFixture(t)

	record, err := f.svc.Record(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, record.ID)

	_, err = f.svc.Record(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fake.Count(http.MethodGet, fakecatalog.RouteProduct))

	_, err = f.svc.Record(context.Background(), 0)
	assert.ErrorIs(t, err, model.ErrInvalidRecordID)

	_, err = f.svc.Record(context.Background(), 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	records, err := f.svc.ByCategory(context.Background(), "men's clothing")
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestService_Categories(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	names, err := f.svc.Categories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"men's clothing", "jewelery", "electronics", "women's clothing"}, names)
}

func TestService_HandleEvent(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	assert.Empty(t, f.svc.HandleEvent(query.EventFocus), "fresh entries are not refetched")

	f.clock.Advance(6 * time.Minute)
	keys := f.svc.HandleEvent(query.EventFocus)
	assert.Equal(t, []query.Key{query.AllRecords()}, keys)
	require.Eventually(t, func() bool {
		return f.fake.Count(http.MethodGet, fakecatalog.RouteProducts) == 2
	}, 2*time.Second, 5*time.Millisecond)
	waitFresh(t, f.cache, query.AllRecords())

	f.clock.Advance(5 * time.Minute)
	keys = f.svc.HandleEvent(query.EventReconnect)
	assert.ElementsMatch(t, []query.Key{query.AllRecords(), query.CategoryList()}, keys)
}

func TestService_WatchRecords(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	sub, err := f.svc.WatchRecords(context.Background())
	require.NoError(t, err)
	defer sub.Close()
	drain(sub.Changes())

	require.NoError(t, f.svc.Delete(context.Background(), 1))

	select {
	case snap := <-sub.Changes():
		records, ok := query.DataAs[[]model.Record](snap)
		require.True(t, ok)
		assert.Len(t, records, 19)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestService_WatchRecord(t *testing.T) {
	f := newFixture(t)

	sub, err := f.svc.WatchRecord(context.Background(), 2)
	require.NoError(t, err)
	defer sub.Close()

	entry, err := sub.Load(context.Background())
	require.NoError(t, err)
	record, ok := query.DataAs[model.Record](entry)
	require.True(t, ok)
	assert.Equal(t, 2, record.ID)

	_, err = f.svc.WatchRecord(context.Background(), -1)
	assert.ErrorIs(t, err, model.ErrInvalidRecordID)
}

func TestService_Deactivate(t *testing.T) {
	f := newFixture(t)
	f.activate(t)

	f.svc.Deactivate()
	f.svc.Deactivate()

	assert.False(t, f.svc.Active())
	assert.False(t, f.cache.Observed(query.AllRecords()))
	_, err := f.svc.List(context.Background(), model.DefaultFilter())
	assert.ErrorIs(t, err, products.ErrInactive)
	_, ok := f.cache.Get(query.AllRecords())
	assert.True(t, ok, "deactivation keeps cached data")
}

func waitFresh(t *testing.T, cache *query.Cache, key query.Key) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, _ := cache.Get(key)
		return snap.Status == query.StatusFresh
	}, 2*time.Second, 5*time.Millisecond)
}

func drain(ch <-chan query.Entry) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
