// Package query provides the keyed query cache: fetched results indexed by
// query identity, with freshness tracking, in-flight deduplication,
// invalidation and observer notifications.
//
// All state lives behind a single mutex and every write goes through a Cache
// method, so no caller can observe a half-applied write. Loader calls run on
// their own goroutines; only they block.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Default freshness window and loader timeout.
const (
	DefaultStaleTime    = 5 * time.Minute
	DefaultFetchTimeout = 30 * time.Second
)

// Loader fetches the data of one key.
type Loader func(ctx context.Context) (any, error)

// Result is delivered once per Start call.
type Result = singleflight.Result

// Config holds the cache settings.
type Config struct {
	// DefaultStaleTime is the freshness window for kinds absent from StaleTimes.
	DefaultStaleTime time.Duration

	// StaleTimes overrides the freshness window per query kind.
	StaleTimes map[Kind]time.Duration

	// FetchTimeout bounds every loader call (0 = no bound).
	FetchTimeout time.Duration
}

// Cache is the keyed store of query results.
type Cache struct {
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger
	group  singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[Key][]*Subscription
}

// New creates an empty Cache. A nil clock uses the real clock.
func New(cfg Config, clock clockwork.Clock, logger *zap.Logger) *Cache {
	if cfg.DefaultStaleTime <= 0 {
		cfg.DefaultStaleTime = DefaultStaleTime
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		entries: make(map[Key]*entry),
		subs:    make(map[Key][]*Subscription),
	}
}

// StaleTime returns the freshness window of key.
func (c *Cache) StaleTime(key Key) time.Duration {
	if d, ok := c.cfg.StaleTimes[key.Kind]; ok && d > 0 {
		return d
	}
	return c.cfg.DefaultStaleTime
}

// Get returns the current snapshot of key.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{Key: key, Status: StatusIdle}, false
	}
	return e.snapshot(c.clock.Now(), c.StaleTime(key)), true
}

// Fetch returns the data of key, loading it only when the cached data is not
// fresh. Concurrent fetches of one key share a single loader call.
func (c *Cache) Fetch(ctx context.Context, key Key, loader Loader) (any, error) {
	return c.wait(ctx, c.Start(ctx, key, loader, false))
}

// Refetch is Fetch without the freshness shortcut: it is used for manual
// retries. It still joins a loader call that is already in flight.
func (c *Cache) Refetch(ctx context.Context, key Key, loader Loader) (any, error) {
	return c.wait(ctx, c.Start(ctx, key, loader, true))
}

// Start begins a fetch of key and returns a channel that receives exactly one
// Result. The fetch is registered before Start returns, so any later Start
// for the same key joins it until it completes. The loader runs detached from
// ctx cancellation; ctx only contributes its values.
func (c *Cache) Start(ctx context.Context, key Key, loader Loader, force bool) <-chan Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key}
		c.entries[key] = e
		cacheEntries.Inc()
	}

	if !force && e.isFresh(now, c.StaleTime(key)) {
		cacheHits.WithLabelValues(key.Kind.String()).Inc()
		ch := make(chan Result, 1)
		ch <- Result{Val: e.data}
		return ch
	}

	if e.fetching {
		cacheJoins.WithLabelValues(key.Kind.String()).Inc()
	} else {
		// The previous call for this key has completed; make sure the group
		// does not hand its result to a new fetch.
		c.group.Forget(key.String())
		e.fetching = true
		e.fetchVersion = e.version
		e.fetchWrites = e.writes
		c.notifyLocked(e, now)
	}

	loadCtx := context.WithoutCancel(ctx)
	return c.group.DoChan(key.String(), func() (any, error) {
		return c.load(loadCtx, e, loader)
	})
}

// wait blocks until res delivers or ctx is done.
func (c *Cache) wait(ctx context.Context, res <-chan Result) (any, error) {
	select {
	case r := <-res:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs one loader call for e and applies its outcome.
func (c *Cache) load(ctx context.Context, e *entry, loader Loader) (any, error) {
	cacheFetches.WithLabelValues(e.key.Kind.String()).Inc()
	c.logger.Debug("query fetch started", zap.Stringer("key", e.key))

	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}

	data, err := loader(ctx)
	return c.complete(e, data, err)
}

// complete stores a loader outcome unless e was evicted meanwhile. It returns
// the outcome handed to waiters: when SetData wrote e during the fetch, that
// is the written data instead of the loader's.
func (c *Cache) complete(e *entry, data any, err error) (any, error) {
	c.mu.Lock()

	if c.entries[e.key] != e {
		c.mu.Unlock()
		cacheDropped.WithLabelValues(e.key.Kind.String()).Inc()
		c.logger.Debug("query result dropped for evicted entry", zap.Stringer("key", e.key))
		return data, err
	}

	now := c.clock.Now()
	e.fetching = false
	overtaken := e.writes != e.fetchWrites

	switch {
	case overtaken:
		cacheDropped.WithLabelValues(e.key.Kind.String()).Inc()
		c.logger.Debug("query result dropped for data written during fetch", zap.Stringer("key", e.key))
		data, err = e.data, nil
		e.status = StatusStale
	case err != nil:
		e.status = StatusError
		e.err = err
		cacheFetchErrors.WithLabelValues(e.key.Kind.String()).Inc()
		c.logger.Warn("query fetch failed",
			zap.Stringer("key", e.key),
			zap.Bool("has_stale_data", e.hasData),
			zap.Error(err),
		)
	default:
		e.data = data
		e.hasData = true
		e.err = nil
		e.lastFetched = now
		e.status = StatusFresh
	}

	invalidated := overtaken || e.version != e.fetchVersion
	if invalidated && e.status == StatusFresh {
		e.status = StatusStale
	}
	c.notifyLocked(e, now)

	refetch := c.observerLoaderLocked(e.key)
	c.mu.Unlock()

	if invalidated && refetch != nil {
		c.Start(context.Background(), e.key, refetch, false)
	}
	return data, err
}

// MarkStale flags key as stale without triggering any fetch. An entry holding
// data becomes Stale even after a failed fetch. A loader call in flight for
// key will leave the entry Stale when it completes.
func (c *Cache) MarkStale(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markStaleLocked(key)
}

// Invalidate marks key stale and, when key has subscribers, schedules a
// background refetch. It never waits for that refetch.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	exists := c.markStaleLocked(key)
	loader := c.observerLoaderLocked(key)
	c.mu.Unlock()

	if exists && loader != nil {
		c.Start(context.Background(), key, loader, false)
	}
}

func (c *Cache) markStaleLocked(key Key) bool {
	e, ok := c.entries[key]
	if !ok {
		return false
	}

	e.version++
	if e.hasData {
		e.status = StatusStale
		e.err = nil
	}
	c.notifyLocked(e, c.clock.Now())
	return true
}

// SetData writes key synchronously. The updater receives the current data
// (ok is false when there is none) and returns the new data; returning
// write=false leaves the cache untouched. Written data is Fresh.
func (c *Cache) SetData(key Key, updater func(prev any, ok bool) (next any, write bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	var prev any
	hasPrev := exists && e.hasData
	if hasPrev {
		prev = e.data
	}

	next, write := updater(prev, hasPrev)
	if !write {
		return false
	}

	if !exists {
		e = &entry{key: key}
		c.entries[key] = e
		cacheEntries.Inc()
	}

	now := c.clock.Now()
	e.writes++
	e.data = next
	e.hasData = true
	e.err = nil
	e.lastFetched = now
	e.status = StatusFresh
	c.notifyLocked(e, now)

	return true
}

// Remove evicts key. A loader call still in flight for key completes without
// touching the cache.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}

	delete(c.entries, key)
	c.group.Forget(key.String())
	cacheEntries.Dec()

	c.broadcastLocked(key, Entry{Key: key, Status: StatusIdle})
}

// Clear evicts every entry. Subscriptions stay registered.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		c.group.Forget(key.String())
		cacheEntries.Dec()
		c.broadcastLocked(key, Entry{Key: key, Status: StatusIdle})
	}
	c.entries = make(map[Key]*entry)
}

// Keys returns the keys currently cached.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

// notifyLocked publishes the snapshot of e to its subscribers.
func (c *Cache) notifyLocked(e *entry, now time.Time) {
	if len(c.subs[e.key]) == 0 {
		return
	}
	c.broadcastLocked(e.key, e.snapshot(now, c.StaleTime(e.key)))
}

func (c *Cache) broadcastLocked(key Key, snap Entry) {
	for _, s := range c.subs[key] {
		s.deliver(snap)
	}
}

// observerLoaderLocked returns the loader of the first subscriber of key.
func (c *Cache) observerLoaderLocked(key Key) Loader {
	subs := c.subs[key]
	if len(subs) == 0 {
		return nil
	}
	return subs[0].loader
}
