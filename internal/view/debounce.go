package view

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDebounce is the quiet period before a search term is applied.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer delivers the last value passed to Trigger once no newer value
// arrived for the configured delay. Every Trigger cancels the pending one.
type Debouncer[T any] struct {
	clock clockwork.Clock
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   clockwork.Timer
	pending T
	has     bool
	gen     uint64
	stopped bool
}

// NewDebouncer creates a Debouncer calling fn. A nil clock uses the real clock.
func NewDebouncer[T any](clock clockwork.Clock, delay time.Duration, fn func(T)) *Debouncer[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer[T]{clock: clock, delay: delay, fn: fn}
}

// Trigger schedules v, replacing any value still waiting.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.pending = v
	d.has = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers the waiting value now, if any.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if !d.has || d.stopped {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	v := d.take()
	d.mu.Unlock()

	d.fn(v)
}

// Stop drops the waiting value and disables the Debouncer.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.take()
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.has || d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()

	d.fn(v)
}

// take clears and returns the pending value. Called with d.mu held.
func (d *Debouncer[T]) take() T {
	var zero T
	v := d.pending
	d.pending = zero
	d.has = false
	d.gen++
	return v
}
