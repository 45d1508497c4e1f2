// Package capture implements the source/sink contracts, the one-shot
// capture pipeline, and the two capture loops of spec.md §4.1-§4.5.
//
// The original used allocator-aware, type-erased one-shot completions
// threaded through an execution context (spec.md §9). Each capture here
// instead runs on its own goroutine and calls these methods synchronously;
// a "suspension point" is just a blocking call (timer wait, event wait,
// mutex acquisition) as the Design Notes in spec.md §9 permit.
package capture

import (
	"time"

	"github.com/shadow-cast/shadow-cast/internal/cancel"
)

// Source produces one capture unit (video frame or audio buffer) into the
// slot returned by the paired Sink's Prepare. S is the sink-defined slot
// type (e.g. *astiav.Frame).
type Source[S any] interface {
	Name() string
	Init() error
	Deinit() error
	Capture(slot S) error
}

// VideoSource is the interval-driven variant (spec.md §4.1): it exposes
// the sticky cancel timer the video capture loop schedules ticks against.
type VideoSource[S any] interface {
	Source[S]
	Interval() time.Duration
	Timer() *cancel.Timer
}

// AudioSource is the event-triggered variant (spec.md §4.1): capture
// itself blocks on the sticky cancel event until a batch of samples is
// ready.
type AudioSource[S any] interface {
	Source[S]
	Event() *cancel.Event
}

// Sink accepts a filled slot, encodes it, and hands resulting packets to
// the muxer (spec.md §4.2).
type Sink[S any] interface {
	// Prepare returns a writable slot matching the sink's encoder layout.
	// No suspension is permitted inside Prepare (spec.md §5).
	Prepare() (S, error)
	Write(slot S) error
	Flush() error
}
