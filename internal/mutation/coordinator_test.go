package mutation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
)

func ptr[T any](v T) *T {
	return &v
}

func seedRecords() []model.Record {
	return []model.Record{
		{ID: 1, Title: "Red Shirt", Price: 10, Category: "clothing"},
		{ID: 2, Title: "Blue Mug", Price: 5, Category: "kitchen"},
		{ID: 3, Title: "Green Hat", Price: 8, Category: "clothing"},
	}
}

func setup(t *testing.T) (*Coordinator, *catalog.MockClient, *query.Cache) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := catalog.NewMockClient(ctrl)
	cache := query.New(query.Config{DefaultStaleTime: time.Minute}, nil, zap.NewNop())
	return New(client, cache, zap.NewNop()), client, cache
}

func cachedList(t *testing.T, cache *query.Cache) []model.Record {
	t.Helper()
	snap, ok := cache.Get(query.AllRecords())
	require.True(t, ok)
	records, ok := query.DataAs[[]model.Record](snap)
	require.True(t, ok)
	return records
}

func TestCoordinator_Update_ReconcilesListAndRecord(t *testing.T) {
	// Arrange
	coord, client, cache := setup(t)
	query.Set(cache, query.AllRecords(), seedRecords())

	patch := model.RecordPatch{Title: ptr("Crimson Shirt"), Price: ptr(12.5)}
	client.EXPECT().
		Update(gomock.Any(), 1, patch).
		Return(model.RecordPatch{Title: ptr("Crimson Shirt"), Price: ptr(12.5)}, nil)

	// Act
	updated, err := coord.Update(context.Background(), 1, patch)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Crimson Shirt", updated.Title)
	assert.Equal(t, 12.5, updated.Price)
	assert.Equal(t, "clothing", updated.Category)

	byID, ok := cache.Get(query.RecordByID(1))
	require.True(t, ok)
	record, ok := query.DataAs[model.Record](byID)
	require.True(t, ok)
	assert.Equal(t, updated, record)
	assert.Equal(t, query.StatusStale, byID.Status)

	list := cachedList(t, cache)
	require.Len(t, list, 3)
	assert.Equal(t, updated, list[0])
	assert.Equal(t, seedRecords()[1:], list[1:])

	all, _ := cache.Get(query.AllRecords())
	assert.Equal(t, query.StatusStale, all.Status)
}

func TestCoordinator_Update_PrefersCachedRecordAsBase(t *testing.T) {
	coord, client, cache := setup(t)
	detailed := model.Record{ID: 2, Title: "Blue Mug", Price: 5, Description: "ceramic", Category: "kitchen"}
	query.Set(cache, query.RecordByID(2), detailed)

	patch := model.RecordPatch{Price: ptr(6.0)}
	client.EXPECT().Update(gomock.Any(), 2, patch).Return(model.RecordPatch{Price: ptr(6.0)}, nil)

	updated, err := coord.Update(context.Background(), 2, patch)

	require.NoError(t, err)
	assert.Equal(t, "ceramic", updated.Description)
	assert.Equal(t, 6.0, updated.Price)
	_, ok := cache.Get(query.AllRecords())
	assert.False(t, ok, "an absent list must stay absent")
}

func TestCoordinator_Update_ServerEchoWins(t *testing.T) {
	coord, client, cache := setup(t)
	query.Set(cache, query.AllRecords(), seedRecords())

	patch := model.RecordPatch{Title: ptr("  Mug  ")}
	client.EXPECT().Update(gomock.Any(), 2, patch).Return(model.RecordPatch{Title: ptr("Mug")}, nil)

	updated, err := coord.Update(context.Background(), 2, patch)

	require.NoError(t, err)
	assert.Equal(t, "Mug", updated.Title)
	assert.Equal(t, "Mug", cachedList(t, cache)[1].Title)
}

func TestCoordinator_Update_LocalValidationSkipsCatalog(t *testing.T) {
	testCases := []struct {
		name    string
		id      int
		patch   model.RecordPatch
		wantErr error
	}{
		{name: "empty patch", id: 1, patch: model.RecordPatch{}, wantErr: model.ErrEmptyPatch},
		{name: "blank title", id: 1, patch: model.RecordPatch{Title: ptr("  ")}, wantErr: model.ErrEmptyTitle},
		{name: "negative price", id: 1, patch: model.RecordPatch{Price: ptr(-1.0)}, wantErr: model.ErrNegativePrice},
		{name: "invalid id", id: 0, patch: model.RecordPatch{Price: ptr(1.0)}, wantErr: model.ErrInvalidRecordID},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// The mock has no expectations: any catalog call fails the test.
			coord, _, cache := setup(t)
			query.Set(cache, query.AllRecords(), seedRecords())

			_, err := coord.Update(context.Background(), tc.id, tc.patch)

			require.ErrorIs(t, err, tc.wantErr)
			var merr *Error
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, catalog.KindInvalid, merr.Kind)
			assert.True(t, merr.Local())
			assert.Equal(t, seedRecords(), cachedList(t, cache))
		})
	}
}

func TestCoordinator_Update_FailureLeavesCacheUntouched(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		wantKind catalog.Kind
		sentinel error
	}{
		{
			name:     "network",
			err:      &catalog.Error{Op: catalog.OpUpdate, Kind: catalog.KindNetwork, Err: errors.New("dial tcp: refused")},
			wantKind: catalog.KindNetwork,
			sentinel: catalog.ErrNetwork,
		},
		{
			name:     "not found",
			err:      &catalog.Error{Op: catalog.OpUpdate, Kind: catalog.KindNotFound, StatusCode: 404, Err: errors.New("gone")},
			wantKind: catalog.KindNotFound,
			sentinel: catalog.ErrNotFound,
		},
		{
			name:     "remote validation",
			err:      &catalog.Error{Op: catalog.OpUpdate, Kind: catalog.KindInvalid, StatusCode: 400, Err: errors.New("bad price")},
			wantKind: catalog.KindInvalid,
			sentinel: catalog.ErrValidation,
		},
		{
			name:     "server",
			err:      &catalog.Error{Op: catalog.OpUpdate, Kind: catalog.KindServer, StatusCode: 503, Err: errors.New("down")},
			wantKind: catalog.KindServer,
			sentinel: catalog.ErrServer,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			coord, client, cache := setup(t)
			query.Set(cache, query.AllRecords(), seedRecords())
			before, _ := cache.Get(query.AllRecords())

			patch := model.RecordPatch{Title: ptr("New")}
			client.EXPECT().Update(gomock.Any(), 1, patch).Return(model.RecordPatch{}, tc.err)

			// Act
			_, err := coord.Update(context.Background(), 1, patch)

			// Assert
			require.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.wantKind, KindOf(err))

			after, _ := cache.Get(query.AllRecords())
			assert.Equal(t, before, after)
			_, ok := cache.Get(query.RecordByID(1))
			assert.False(t, ok)
		})
	}
}

func TestCoordinator_Delete_RemovesEverywhere(t *testing.T) {
	coord, client, cache := setup(t)
	query.Set(cache, query.AllRecords(), seedRecords())
	query.Set(cache, query.RecordByID(2), seedRecords()[1])
	query.Set(cache, query.RecordByID(3), seedRecords()[2])

	client.EXPECT().Delete(gomock.Any(), 2).Return(nil)

	err := coord.Delete(context.Background(), 2)

	require.NoError(t, err)
	_, ok := cache.Get(query.RecordByID(2))
	assert.False(t, ok)
	for _, r := range cachedList(t, cache) {
		assert.NotEqual(t, 2, r.ID)
	}
	assert.Len(t, cachedList(t, cache), 2)

	other, ok := cache.Get(query.RecordByID(3))
	require.True(t, ok)
	assert.Equal(t, query.StatusFresh, other.Status)
}

func TestCoordinator_Delete_FailureLeavesCacheUntouched(t *testing.T) {
	coord, client, cache := setup(t)
	query.Set(cache, query.AllRecords(), seedRecords())
	query.Set(cache, query.RecordByID(1), seedRecords()[0])

	client.EXPECT().Delete(gomock.Any(), 1).
		Return(&catalog.Error{Op: catalog.OpDelete, Kind: catalog.KindServer, StatusCode: 500, Err: errors.New("boom")})

	err := coord.Delete(context.Background(), 1)

	require.ErrorIs(t, err, catalog.ErrServer)
	assert.Equal(t, seedRecords(), cachedList(t, cache))
	_, ok := cache.Get(query.RecordByID(1))
	assert.True(t, ok)
}

func TestCoordinator_Delete_InvalidID(t *testing.T) {
	coord, _, _ := setup(t)

	err := coord.Delete(context.Background(), -4)

	assert.ErrorIs(t, err, model.ErrInvalidRecordID)
}

func TestCoordinator_Delete_InFlightFetchDoesNotResurrect(t *testing.T) {
	// Arrange
	coord, client, cache := setup(t)
	gate := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		<-gate
		return model.Record{ID: 7, Title: "Lamp"}, nil
	}
	res := cache.Start(context.Background(), query.RecordByID(7), loader, false)
	client.EXPECT().Delete(gomock.Any(), 7).Return(nil)

	// Act
	require.NoError(t, coord.Delete(context.Background(), 7))
	close(gate)
	<-res

	// Assert
	_, ok := cache.Get(query.RecordByID(7))
	assert.False(t, ok)
}

func listIDs(records []model.Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestCoordinator_InFlightListFetchKeepsMutations(t *testing.T) {
	// Arrange
	coord, client, cache := setup(t)
	query.Set(cache, query.AllRecords(), seedRecords())
	cache.MarkStale(query.AllRecords())

	gate := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		<-gate
		return seedRecords(), nil
	}
	res := cache.Start(context.Background(), query.AllRecords(), loader, false)

	patch := model.RecordPatch{Title: ptr("Crimson")}
	client.EXPECT().Update(gomock.Any(), 1, patch).Return(model.RecordPatch{Title: ptr("Crimson")}, nil)
	client.EXPECT().Delete(gomock.Any(), 2).Return(nil)

	// Act
	_, err := coord.Update(context.Background(), 1, patch)
	require.NoError(t, err)
	require.NoError(t, coord.Delete(context.Background(), 2))
	close(gate)
	r := <-res

	// Assert
	require.NoError(t, r.Err)
	list := cachedList(t, cache)
	assert.Equal(t, []int{1, 3}, listIDs(list))
	assert.Equal(t, "Crimson", list[0].Title)

	all, _ := cache.Get(query.AllRecords())
	assert.Equal(t, query.StatusStale, all.Status)

	byID, ok := cache.Get(query.RecordByID(1))
	require.True(t, ok)
	record, ok := query.DataAs[model.Record](byID)
	require.True(t, ok)
	assert.Equal(t, list[0], record)
}

func TestCoordinator_Delete_InFlightListFetchStaysStale(t *testing.T) {
	coord, client, cache := setup(t)
	query.Set(cache, query.AllRecords(), seedRecords())
	cache.MarkStale(query.AllRecords())

	gate := make(chan struct{})
	loader := func(ctx context.Context) (any, error) {
		<-gate
		return seedRecords(), nil
	}
	res := cache.Start(context.Background(), query.AllRecords(), loader, false)
	client.EXPECT().Delete(gomock.Any(), 2).Return(nil)

	require.NoError(t, coord.Delete(context.Background(), 2))
	close(gate)
	<-res

	assert.Equal(t, []int{1, 3}, listIDs(cachedList(t, cache)))
	all, _ := cache.Get(query.AllRecords())
	assert.Equal(t, query.StatusStale, all.Status)
}

func TestCoordinator_Metrics(t *testing.T) {
	coord, client, _ := setup(t)
	successBefore := testutil.ToFloat64(mutationsTotal.WithLabelValues(OpDelete, "success"))
	notFoundBefore := testutil.ToFloat64(mutationsTotal.WithLabelValues(OpDelete, string(catalog.KindNotFound)))

	client.EXPECT().Delete(gomock.Any(), 1).Return(nil)
	client.EXPECT().Delete(gomock.Any(), 2).
		Return(&catalog.Error{Op: catalog.OpDelete, Kind: catalog.KindNotFound, StatusCode: 404, Err: errors.New("gone")})

	_ = coord.Delete(context.Background(), 1)
	_ = coord.Delete(context.Background(), 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(mutationsTotal.WithLabelValues(OpDelete, "success"))-successBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(mutationsTotal.WithLabelValues(OpDelete, string(catalog.KindNotFound)))-notFoundBefore)
}

func TestError_Message(t *testing.T) {
	err := classify(OpUpdate, 3, model.ErrEmptyPatch)

	assert.Equal(t, "update record 3: patch must set at least one field", err.Error())
	assert.Equal(t, catalog.KindInvalid, err.Kind)
}
