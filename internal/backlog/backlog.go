// Package backlog tracks frames the video capture loop owes after a tick
// overran its interval, per spec.md §3 "Backlog Tracker" and §4.4.
package backlog

import "time"

// Tracker counts frames owed relative to a target frame interval. It holds
// no clock of its own — the video capture loop passes elapsed durations in
// explicitly, matching the "single Instant captured at session start" note
// in spec.md §9.
type Tracker struct {
	count int
}

// Count returns the current backlog, always >= 0.
func (t *Tracker) Count() int { return t.count }

// Observe folds in one completed tick: elapsed is the wall-clock time the
// just-finished pipeline run took, frameTime is the target interval. It
// returns the number of frames missed by this tick (0 if elapsed <
// frameTime) and the delay to wait before the next tick: frameTime minus
// the remainder of elapsed, or zero if the backlog is nonzero (don't wait,
// catch up immediately).
func (t *Tracker) Observe(elapsed, frameTime time.Duration) (missed int, delta time.Duration) {
	if frameTime <= 0 {
		panic("backlog: frameTime must be > 0")
	}
	missed = int(elapsed / frameTime)
	t.count += missed

	delta = frameTime - (elapsed % frameTime)
	if t.count > 0 {
		delta = 0
	}
	return missed, delta
}

// Decrement consumes one unit of backlog once a scheduled tick has fired,
// as spec.md §4.4 step 2 describes ("decrement backlog by one if
// positive"). It is a no-op when the backlog is already zero.
func (t *Tracker) Decrement() {
	if t.count > 0 {
		t.count--
	}
}

// Drain reports the full backlog and resets it to zero, used by the video
// loop's finalize path to run the pipeline frame_backlog more times without
// waiting before flushing (spec.md §4.4 step 3).
func (t *Tracker) Drain() int {
	n := t.count
	t.count = 0
	return n
}
