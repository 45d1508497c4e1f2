// Package frametime converts a target frame rate into the nanosecond
// deadlines the video capture loop schedules against.
package frametime

import (
	"fmt"
	"time"
)

// FrameTime is a non-zero duration expressed in nanoseconds. It is
// immutable once constructed.
type FrameTime struct {
	ns int64
}

// FromFPS derives a FrameTime from frames-per-second, e.g. 60 -> ~16.67ms.
// strict, when false, truncates the result to whole milliseconds (the
// default CLI behavior; --strict-frame-time disables the truncation).
func FromFPS(fps int, strict bool) (FrameTime, error) {
	if fps <= 0 {
		return FrameTime{}, fmt.Errorf("frametime: fps must be > 0, got %d", fps)
	}
	ns := time.Second.Nanoseconds() / int64(fps)
	ft := FrameTime{ns: ns}
	if !strict {
		ft = ft.TruncateMillis()
	}
	if ft.ns <= 0 {
		return FrameTime{}, fmt.Errorf("frametime: fps %d truncates to zero frame time", fps)
	}
	return ft, nil
}

// FromNanoseconds wraps a precomputed nanosecond interval.
func FromNanoseconds(ns int64) (FrameTime, error) {
	if ns <= 0 {
		return FrameTime{}, fmt.Errorf("frametime: nanoseconds must be > 0, got %d", ns)
	}
	return FrameTime{ns: ns}, nil
}

// Nanoseconds returns the interval as an int64 nanosecond count.
func (f FrameTime) Nanoseconds() int64 { return f.ns }

// Duration returns the interval as a time.Duration.
func (f FrameTime) Duration() time.Duration { return time.Duration(f.ns) }

// FPS returns the derived frames-per-second rational as (numerator,
// denominator): always one second in nanoseconds over the frame time in
// nanoseconds, e.g. 1000000000/33333333 for a strict 30 fps frame time.
func (f FrameTime) FPS() (num, den int) {
	return int(time.Second.Nanoseconds()), int(f.ns)
}

// TruncateMillis returns a new FrameTime truncated to whole milliseconds,
// matching the CLI default (disabled by --strict-frame-time).
func (f FrameTime) TruncateMillis() FrameTime {
	const msInNs = int64(time.Millisecond)
	return FrameTime{ns: (f.ns / msInNs) * msInNs}
}

func (f FrameTime) String() string {
	return f.Duration().String()
}
