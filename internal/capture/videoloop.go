package capture

import (
	"errors"
	"time"

	"github.com/shadow-cast/shadow-cast/internal/backlog"
	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/logging"
	"github.com/shadow-cast/shadow-cast/internal/metrics"
)

// VideoLoop drives an interval-based source+sink pair (spec.md §4.4):
// schedules the next tick accounting for elapsed time plus backlog, and
// enforces cancellation via the source's sticky timer.
type VideoLoop[S any] struct {
	sink   Sink[S]
	source VideoSource[S]
	log    *logging.Logger
	rec    *metrics.Recorder

	frameTime   time.Duration
	frameNumber uint64
	backlog     backlog.Tracker
}

// NewVideoLoop builds a VideoLoop over sink/source, deriving frame_time
// from source.Interval(). Metrics are disabled until WithMetrics is
// called; a nil *metrics.Recorder (the default) makes every Record call
// a no-op.
func NewVideoLoop[S any](sink Sink[S], source VideoSource[S], log *logging.Logger) *VideoLoop[S] {
	return &VideoLoop[S]{
		sink:      sink,
		source:    source,
		log:       log,
		frameTime: source.Interval(),
	}
}

// WithMetrics attaches a metrics recorder (SPEC_FULL.md §4.11); samples
// are emitted for the source's capture and the sink's write once per
// completed frame. Returns the receiver for chaining at construction.
func (l *VideoLoop[S]) WithMetrics(rec *metrics.Recorder) *VideoLoop[S] {
	l.rec = rec
	return l
}

// FrameNumber reports the number of pipeline completions so far. Strictly
// monotonic, starting at 0, incremented exactly once per successful
// pipeline completion (spec.md §8).
func (l *VideoLoop[S]) FrameNumber() uint64 { return l.frameNumber }

// Run executes the loop until cancellation or a fatal error, then flushes
// the sink per spec.md §4.4 step 3, returning the first fatal error (nil
// on a clean cancel-then-flush exit).
func (l *VideoLoop[S]) Run() error {
	frameStart := time.Now()

	for {
		timing, err := RunPipeline[S](l.sink, l.source)
		elapsed := time.Since(frameStart)

		if err != nil {
			return l.finalize(err)
		}

		missed, delta := l.backlog.Observe(elapsed, l.frameTime)
		l.frameNumber++
		l.rec.Record(metrics.Sample{
			Category:   metrics.CategorySourceCapture,
			ID:         l.source.Name(),
			At:         frameStart,
			Duration:   timing.CaptureDuration,
			FrameCount: 1,
		})
		l.rec.Record(metrics.Sample{
			Category:   metrics.CategorySinkWrite,
			ID:         l.source.Name(),
			At:         frameStart,
			Duration:   timing.SinkDuration,
			FrameCount: 1,
		})
		if missed > 0 {
			l.log.Warnf("video_capture_loop: missed %d frame(s) (frame=%d capture=%s sink=%s)",
				missed, l.frameNumber, timing.CaptureDuration, timing.SinkDuration)
		}

		frameFinish := time.Now()
		waitErr := l.source.Timer().WaitForExpiryAfter(delta)
		// The intended next frame start absorbs timer overrun: it is
		// computed from when the wait began plus delta, not from when
		// the timer actually fired.
		frameStart = frameFinish.Add(delta)
		l.backlog.Decrement()

		if waitErr != nil {
			return l.finalize(waitErr)
		}
	}
}

func (l *VideoLoop[S]) finalize(cause error) error {
	if !errors.Is(cause, errkind.IsCancelled) {
		return cause
	}

	if n := l.backlog.Drain(); n > 0 {
		l.log.Warnf("video_capture_loop: draining %d backlogged frame(s) before flush", n)
		for i := 0; i < n; i++ {
			if _, err := RunPipeline[S](l.sink, l.source); err != nil {
				// A failure during backlog drain does not abort the
				// flush; it's logged and the loop proceeds to flush
				// whatever packets the sink has already buffered.
				l.log.Warnf("video_capture_loop: backlog drain frame failed: %v", err)
				break
			}
			l.frameNumber++
		}
	}

	if err := l.sink.Flush(); err != nil {
		return err
	}
	return nil
}
