package capture

import "time"

// Timing is the monotonic-clock measurement of one pipeline run, returned
// per spec.md §4.3 step 4.
type Timing struct {
	CaptureDuration time.Duration
	SinkDuration    time.Duration
}

// RunPipeline is the single-frame one-shot source->sink hand-off of
// spec.md §4.3: prepare a slot, capture into it, write it, and report
// Timing. On any failure at either stage it returns that error without
// invoking the other stage.
func RunPipeline[S any](sink Sink[S], source Source[S]) (Timing, error) {
	slot, err := sink.Prepare()
	if err != nil {
		return Timing{}, err
	}

	captureStart := time.Now()
	if err := source.Capture(slot); err != nil {
		return Timing{}, err
	}
	captureDuration := time.Since(captureStart)

	sinkStart := time.Now()
	if err := sink.Write(slot); err != nil {
		return Timing{}, err
	}
	sinkDuration := time.Since(sinkStart)

	return Timing{CaptureDuration: captureDuration, SinkDuration: sinkDuration}, nil
}
