// Package mutation applies confirmed catalog writes to the query cache.
//
// Writes are never optimistic: the cache is only touched after the catalog
// acknowledged the change, so a failed mutation leaves every entry as it was.
package mutation

import (
	"context"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-cache/internal/catalog"
	"github.com/vyrodovalexey/catalog-cache/internal/model"
	"github.com/vyrodovalexey/catalog-cache/internal/query"
)

// Coordinator executes updates and deletes and reconciles the cache.
type Coordinator struct {
	client catalog.Client
	cache  *query.Cache
	logger *zap.Logger
}

// New creates a Coordinator.
func New(client catalog.Client, cache *query.Cache, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// Update sends patch for record id. On success the merged record replaces the
// matching element of the record list and the by-id entry, and both keys are
// marked stale for the next read to revalidate.
func (c *Coordinator) Update(ctx context.Context, id int, patch model.RecordPatch) (model.Record, error) {
	record, err := c.update(ctx, id, patch)
	observe(OpUpdate, err)
	return record, err
}

func (c *Coordinator) update(ctx context.Context, id int, patch model.RecordPatch) (model.Record, error) {
	if id <= 0 {
		return model.Record{}, classify(OpUpdate, id, model.ErrInvalidRecordID)
	}
	if err := patch.Validate(); err != nil {
		return model.Record{}, classify(OpUpdate, id, err)
	}

	echo, err := c.client.Update(ctx, id, patch)
	if err != nil {
		c.logger.Warn("update rejected",
			zap.Int("id", id),
			zap.Error(err),
		)
		return model.Record{}, classify(OpUpdate, id, err)
	}

	merged := echo.Apply(patch.Apply(c.base(id)))
	merged.ID = id

	allKey := query.AllRecords()
	byIDKey := query.RecordByID(id)

	query.Update(c.cache, allKey, func(records []model.Record) []model.Record {
		return replaceRecord(records, merged)
	})
	query.Set(c.cache, byIDKey, merged)
	c.cache.MarkStale(allKey)
	c.cache.MarkStale(byIDKey)

	c.logger.Info("record updated", zap.Int("id", id))
	return merged, nil
}

// Delete removes record id. On success it disappears from the record list
// and its by-id entry is evicted.
func (c *Coordinator) Delete(ctx context.Context, id int) error {
	err := c.delete(ctx, id)
	observe(OpDelete, err)
	return err
}

func (c *Coordinator) delete(ctx context.Context, id int) error {
	if id <= 0 {
		return classify(OpDelete, id, model.ErrInvalidRecordID)
	}

	if err := c.client.Delete(ctx, id); err != nil {
		c.logger.Warn("delete rejected",
			zap.Int("id", id),
			zap.Error(err),
		)
		return classify(OpDelete, id, err)
	}

	allKey := query.AllRecords()
	query.Update(c.cache, allKey, func(records []model.Record) []model.Record {
		return dropRecord(records, id)
	})
	c.cache.Remove(query.RecordByID(id))
	c.cache.MarkStale(allKey)

	c.logger.Info("record deleted", zap.Int("id", id))
	return nil
}

// base returns the best known state of record id: the by-id entry, else the
// list element, else a record carrying only the id.
func (c *Coordinator) base(id int) model.Record {
	if snap, ok := c.cache.Get(query.RecordByID(id)); ok {
		if record, ok := query.DataAs[model.Record](snap); ok {
			return record
		}
	}
	if snap, ok := c.cache.Get(query.AllRecords()); ok {
		if records, ok := query.DataAs[[]model.Record](snap); ok {
			for _, r := range records {
				if r.ID == id {
					return r
				}
			}
		}
	}
	return model.Record{ID: id}
}

// replaceRecord returns a copy of records with the element matching r.ID
// replaced. The input slice is never modified.
func replaceRecord(records []model.Record, r model.Record) []model.Record {
	out := make([]model.Record, len(records))
	copy(out, records)
	for i := range out {
		if out[i].ID == r.ID {
			out[i] = r
		}
	}
	return out
}

func dropRecord(records []model.Record, id int) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
