package filter

import (
	"sync"
	"time"
)

// DefaultDebounceDelay is used when a non-positive delay is supplied.
const DefaultDebounceDelay = 300 * time.Millisecond

// Debouncer delays calls to fn until delay has passed without another
// call. Only the most recent argument is delivered. Each Debouncer owns a
// single timer, so at most one invocation is pending at any time.
type Debouncer[A any] struct {
	fn    func(A)
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	arg     A
	gen     uint64
}

// NewDebouncer wraps fn with a trailing-edge debounce. A delay of zero
// selects DefaultDebounceDelay rather than firing on the next tick, so a
// zero-valued config still debounces.
func NewDebouncer[A any](fn func(A), delay time.Duration) *Debouncer[A] {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer[A]{fn: fn, delay: delay}
}

// DebounceFilterChange returns a function that debounces calls to fn.
func DebounceFilterChange[A any](fn func(A), delay time.Duration) func(A) {
	return NewDebouncer(fn, delay).Call
}

// Call cancels any pending invocation and schedules fn(arg) after the
// configured delay.
func (d *Debouncer[A]) Call(arg A) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.arg = arg
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Stop cancels a pending invocation and reports whether one was pending.
func (d *Debouncer[A]) Stop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasPending := d.pending
	d.reset()
	return wasPending
}

// Flush runs a pending invocation immediately on the calling goroutine and
// reports whether there was one.
func (d *Debouncer[A]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	arg := d.arg
	d.reset()
	d.mu.Unlock()

	d.fn(arg)
	return true
}

func (d *Debouncer[A]) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost a race with Call, Stop or Flush must not deliver.
	if gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	arg := d.arg
	d.reset()
	d.mu.Unlock()

	d.fn(arg)
}

// reset must be called with mu held.
func (d *Debouncer[A]) reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero A
	d.arg = zero
	d.pending = false
	d.gen++
}
