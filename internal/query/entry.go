package query

import "time"

// Status is the lifecycle state of a cache entry.
type Status int

// Entry states.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusError
)

// String returns the lower-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a point-in-time snapshot of a cache slot.
//
// Status is Loading while a fetch is in flight, regardless of whether older
// data is still present. Fresh implies HasData and an age below the freshness
// window; older data reads as Stale. Error keeps the last good Data.
type Entry struct {
	Key           Key
	Data          any
	HasData       bool
	Status        Status
	LastFetchedAt time.Time
	Err           error
}

// entry is the mutable slot behind an Entry. Guarded by Cache.mu.
type entry struct {
	key         Key
	data        any
	hasData     bool
	status      Status // never StatusLoading; see fetching
	fetching    bool
	lastFetched time.Time
	err         error

	// version increments on every invalidation and writes on every SetData.
	// Both are captured when a fetch is registered; a fetch that completes
	// after either moved leaves the entry Stale, and one overtaken by a write
	// does not replace the written data.
	version      uint64
	writes       uint64
	fetchVersion uint64
	fetchWrites  uint64
}

func (e *entry) isFresh(now time.Time, staleTime time.Duration) bool {
	return e.status == StatusFresh && e.hasData && now.Sub(e.lastFetched) < staleTime
}

func (e *entry) snapshot(now time.Time, staleTime time.Duration) Entry {
	status := e.status
	switch {
	case e.fetching:
		status = StatusLoading
	case status == StatusFresh && !e.isFresh(now, staleTime):
		status = StatusStale
	}

	return Entry{
		Key:           e.key,
		Data:          e.data,
		HasData:       e.hasData,
		Status:        status,
		LastFetchedAt: e.lastFetched,
		Err:           e.err,
	}
}
