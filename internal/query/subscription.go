package query

import (
	"context"

	"go.uber.org/zap"
)

// Event is an environment signal that may trigger refetches of observed keys.
type Event int

// Events.
const (
	EventFocus Event = iota + 1
	EventReconnect
)

// String returns the name of the event.
func (ev Event) String() string {
	switch ev {
	case EventFocus:
		return "focus"
	case EventReconnect:
		return "reconnect"
	default:
		return "unknown"
	}
}

// ParseEvent maps an event name onto an Event.
func ParseEvent(name string) (Event, bool) {
	switch name {
	case "focus":
		return EventFocus, true
	case "reconnect":
		return EventReconnect, true
	default:
		return 0, false
	}
}

// SubscribeOptions selects which events refetch a subscribed key.
type SubscribeOptions struct {
	RefetchOnFocus     bool
	RefetchOnReconnect bool
}

func (o SubscribeOptions) wants(ev Event) bool {
	switch ev {
	case EventFocus:
		return o.RefetchOnFocus
	case EventReconnect:
		return o.RefetchOnReconnect
	default:
		return false
	}
}

// Subscription marks a key as observed and receives its snapshots.
type Subscription struct {
	cache  *Cache
	key    Key
	loader Loader
	opts   SubscribeOptions

	// Guarded by cache.mu.
	ch     chan Entry
	closed bool
}

// Subscribe registers an observer of key and starts loading it unless it is
// already fresh. The loader is reused for background refetches.
func (c *Cache) Subscribe(ctx context.Context, key Key, loader Loader, opts SubscribeOptions) *Subscription {
	s := &Subscription{
		cache:  c,
		key:    key,
		loader: loader,
		opts:   opts,
		ch:     make(chan Entry, 1),
	}

	c.mu.Lock()
	c.subs[key] = append(c.subs[key], s)
	c.mu.Unlock()

	c.Start(ctx, key, loader, false)
	return s
}

// Key returns the observed key.
func (s *Subscription) Key() Key {
	return s.key
}

// Changes delivers the latest snapshot after every change of the key. Slow
// readers only see the most recent snapshot. The channel is closed by Close.
func (s *Subscription) Changes() <-chan Entry {
	return s.ch
}

// Read returns the current snapshot and starts a background refetch when the
// entry is absent or stale. Errors are left for an explicit Refetch.
func (s *Subscription) Read(ctx context.Context) Entry {
	snap, ok := s.cache.Get(s.key)
	if !ok || snap.Status == StatusStale || snap.Status == StatusIdle {
		s.cache.Start(ctx, s.key, s.loader, false)
		if !ok {
			snap, _ = s.cache.Get(s.key)
		}
	}
	return snap
}

// Load is Read for callers that need data: when nothing is cached yet it
// waits for the fetch. A failed entry without data is returned as is.
func (s *Subscription) Load(ctx context.Context) (Entry, error) {
	snap := s.Read(ctx)
	if snap.HasData || (snap.Status == StatusError && snap.Err != nil) {
		return snap, nil
	}

	if _, err := s.cache.Fetch(ctx, s.key, s.loader); err != nil && ctx.Err() != nil {
		return snap, err
	}

	snap, _ = s.cache.Get(s.key)
	return snap, nil
}

// Refetch forces a fetch of the key (manual retry) and waits for it.
func (s *Subscription) Refetch(ctx context.Context) (Entry, error) {
	_, err := s.cache.Refetch(ctx, s.key, s.loader)
	snap, _ := s.cache.Get(s.key)
	return snap, err
}

// Close unregisters the subscription. The cached entry is kept.
func (s *Subscription) Close() {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)

	subs := c.subs[s.key]
	for i, other := range subs {
		if other == s {
			c.subs[s.key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(c.subs[s.key]) == 0 {
		delete(c.subs, s.key)
	}
}

// deliver replaces any undelivered snapshot with snap. Called with cache.mu held.
func (s *Subscription) deliver(snap Entry) {
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

// Observed reports whether key has at least one subscriber.
func (c *Cache) Observed(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[key]) > 0
}

// Notify handles an environment event: every subscribed key that opted in and
// is absent, stale or failed is refetched in the background. Fresh keys and
// keys already loading are left alone. Notify returns the keys it refetched.
func (c *Cache) Notify(ev Event) []Key {
	type target struct {
		key    Key
		loader Loader
	}

	c.mu.Lock()
	now := c.clock.Now()
	var targets []target
	for key, subs := range c.subs {
		var loader Loader
		for _, s := range subs {
			if s.opts.wants(ev) {
				loader = s.loader
				break
			}
		}
		if loader == nil {
			continue
		}

		e, ok := c.entries[key]
		if ok && (e.fetching || e.isFresh(now, c.StaleTime(key))) {
			continue
		}
		targets = append(targets, target{key: key, loader: loader})
	}
	c.mu.Unlock()

	keys := make([]Key, 0, len(targets))
	for _, t := range targets {
		c.logger.Debug("refetching on event",
			zap.Stringer("event", ev),
			zap.Stringer("key", t.key),
		)
		c.Start(context.Background(), t.key, t.loader, false)
		keys = append(keys, t.key)
	}
	return keys
}
