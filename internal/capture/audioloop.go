package capture

import (
	"errors"
	"time"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/metrics"
)

// AudioLoop drives an event-triggered source+sink pair (spec.md §4.5):
// runs the pipeline until cancellation, flushing the sink on a clean exit.
//
// spec.md §4.5 describes a loop-level "source.event().wait_for_event"
// step ahead of running the pipeline, in addition to the event wait the
// PipeWire source's own Capture performs internally (spec.md §4.1). Taken
// literally that double-waits the same sticky event and would silently
// drop every other produced frame. original_source/experimental/
// audio_capture_loop_operation.hpp — the implementation spec.md was
// distilled from — has no such separate pre-wait: the loop simply reruns
// capture_pipeline, whose first real suspension point is the source's own
// event wait. This type follows the original: the event wait happens
// exactly once per frame, inside the source's Capture.
type AudioLoop[S any] struct {
	sink   Sink[S]
	source AudioSource[S]
	rec    *metrics.Recorder
}

// NewAudioLoop builds an AudioLoop over sink/source.
func NewAudioLoop[S any](sink Sink[S], source AudioSource[S]) *AudioLoop[S] {
	return &AudioLoop[S]{sink: sink, source: source}
}

// WithMetrics attaches a metrics recorder (SPEC_FULL.md §4.11); see
// VideoLoop.WithMetrics.
func (l *AudioLoop[S]) WithMetrics(rec *metrics.Recorder) *AudioLoop[S] {
	l.rec = rec
	return l
}

// Run executes the loop until cancellation or a fatal error. On
// cancellation it flushes the sink and returns nil; any other error is
// returned without flushing.
func (l *AudioLoop[S]) Run() error {
	for {
		now := time.Now()
		timing, err := RunPipeline[S](l.sink, l.source)
		if err == nil {
			l.rec.Record(metrics.Sample{
				Category:   metrics.CategorySourceCapture,
				ID:         l.source.Name(),
				At:         now,
				Duration:   timing.CaptureDuration,
				FrameCount: 1,
			})
			l.rec.Record(metrics.Sample{
				Category:   metrics.CategorySinkWrite,
				ID:         l.source.Name(),
				At:         now,
				Duration:   timing.SinkDuration,
				FrameCount: 1,
			})
			continue
		}

		if !errors.Is(err, errkind.IsCancelled) {
			return err
		}
		return l.sink.Flush()
	}
}
