// Package cancel implements the Sticky Cancel Primitive of spec.md §3/§4.8:
// a one-way latch where, once tripped, every future wait resolves
// immediately with Cancelled.
//
// The original used a timer/event completion posted through an execution
// context; this module maps that to plain blocking calls on a
// goroutine-per-capture, per the Design Notes in spec.md §9 — each capture
// loop owns one goroutine, so a "suspension point" is just a channel
// receive.
package cancel

import (
	"sync"
	"time"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

// Latch is the shared cancelled/armed state. Cancel is idempotent and
// thread-safe; Done returns a channel that is closed exactly once, on the
// first Cancel call.
type Latch struct {
	once sync.Once
	done chan struct{}
}

func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Cancel trips the latch. Safe to call more than once or concurrently.
func (l *Latch) Cancel() {
	l.once.Do(func() { close(l.done) })
}

// Cancelled reports whether Cancel has been called.
func (l *Latch) Cancelled() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Done returns the channel that closes on Cancel.
func (l *Latch) Done() <-chan struct{} { return l.done }

// Timer is the interval-driven source's sticky cancel handle: a timer
// that, once cancelled, resolves every subsequent wait with Cancelled
// rather than actually waiting.
type Timer struct {
	latch *Latch
}

func NewTimer() *Timer { return &Timer{latch: NewLatch()} }

// Cancel trips the underlying latch.
func (t *Timer) Cancel() { t.latch.Cancel() }

// Cancelled reports whether Cancel has been called.
func (t *Timer) Cancelled() bool { return t.latch.Cancelled() }

// WaitForExpiryAfter blocks for delta, or returns immediately with a
// Cancelled error if the timer is already (or becomes) cancelled.
func (t *Timer) WaitForExpiryAfter(delta time.Duration) error {
	if t.latch.Cancelled() {
		return errkind.New(errkind.Cancelled, "sticky_cancel_timer.wait", nil)
	}
	if delta <= 0 {
		// Still observe a pending cancel raised concurrently with the call.
		select {
		case <-t.latch.Done():
			return errkind.New(errkind.Cancelled, "sticky_cancel_timer.wait", nil)
		default:
			return nil
		}
	}
	timer := time.NewTimer(delta)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-t.latch.Done():
		return errkind.New(errkind.Cancelled, "sticky_cancel_timer.wait", nil)
	}
}

// Event is the event-triggered source's sticky cancel handle (audio):
// TriggerWithValue posts that n complete frames are available; WaitForEvent
// consumes one unit, blocking until a trigger arrives or the event is
// cancelled.
type Event struct {
	latch *Latch

	mu      sync.Mutex
	cond    *sync.Cond
	pending uint64
}

func NewEvent() *Event {
	e := &Event{latch: NewLatch()}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Cancel trips the underlying latch and wakes every blocked waiter.
func (e *Event) Cancel() {
	e.latch.Cancel()
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Cancelled reports whether Cancel has been called.
func (e *Event) Cancelled() bool { return e.latch.Cancelled() }

// TriggerWithValue records that val additional complete units (e.g. audio
// frames) are available and wakes any waiter.
func (e *Event) TriggerWithValue(val uint64) {
	e.mu.Lock()
	e.pending += val
	e.cond.Broadcast()
	e.mu.Unlock()
}

// WaitForEvent blocks until at least one pending unit is available, then
// consumes it. It returns a Cancelled error immediately (or as soon as a
// concurrent Cancel arrives) rather than waiting further.
func (e *Event) WaitForEvent() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.pending == 0 {
		if e.latch.Cancelled() {
			return errkind.New(errkind.Cancelled, "sticky_cancel_event.wait", nil)
		}
		e.cond.Wait()
	}
	if e.latch.Cancelled() {
		return errkind.New(errkind.Cancelled, "sticky_cancel_event.wait", nil)
	}
	e.pending--
	return nil
}
