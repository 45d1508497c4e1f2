package capture

import (
	"errors"
	"testing"
	"time"
)

type fakeSlot struct {
	filled  bool
	written bool
}

type fakeSource struct {
	captureErr   error
	captureSleep time.Duration
	captures     int
}

func (f *fakeSource) Name() string  { return "fake-source" }
func (f *fakeSource) Init() error   { return nil }
func (f *fakeSource) Deinit() error { return nil }
func (f *fakeSource) Capture(slot *fakeSlot) error {
	f.captures++
	if f.captureSleep > 0 {
		time.Sleep(f.captureSleep)
	}
	if f.captureErr != nil {
		return f.captureErr
	}
	slot.filled = true
	return nil
}

type fakeSink struct {
	prepareErr error
	writeErr   error
	flushed    int
	written    int
}

func (f *fakeSink) Prepare() (*fakeSlot, error) {
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &fakeSlot{}, nil
}
func (f *fakeSink) Write(slot *fakeSlot) error {
	f.written++
	if f.writeErr != nil {
		return f.writeErr
	}
	if !slot.filled {
		return errors.New("slot was never filled by source")
	}
	slot.written = true
	return nil
}
func (f *fakeSink) Flush() error {
	f.flushed++
	return nil
}

func TestPipelineHappyPathReportsTiming(t *testing.T) {
	source := &fakeSource{captureSleep: time.Millisecond}
	sink := &fakeSink{}

	timing, err := RunPipeline[*fakeSlot](sink, source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timing.CaptureDuration < time.Millisecond {
		t.Fatalf("expected capture duration >= 1ms, got %v", timing.CaptureDuration)
	}
	if sink.written != 1 {
		t.Fatalf("expected sink.Write called once, got %d", sink.written)
	}
}

func TestPipelineSourceFailureSkipsSink(t *testing.T) {
	wantErr := errors.New("capture exploded")
	source := &fakeSource{captureErr: wantErr}
	sink := &fakeSink{}

	_, err := RunPipeline[*fakeSlot](sink, source)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected capture error, got %v", err)
	}
	if sink.written != 0 {
		t.Fatalf("expected sink.Write to never be called, got %d calls", sink.written)
	}
}

func TestPipelineSinkFailurePropagates(t *testing.T) {
	wantErr := errors.New("encode exploded")
	source := &fakeSource{}
	sink := &fakeSink{writeErr: wantErr}

	_, err := RunPipeline[*fakeSlot](sink, source)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestPipelinePrepareFailureSkipsSourceAndSink(t *testing.T) {
	wantErr := errors.New("prepare exploded")
	source := &fakeSource{}
	sink := &fakeSink{prepareErr: wantErr}

	_, err := RunPipeline[*fakeSlot](sink, source)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected prepare error, got %v", err)
	}
	if source.captures != 0 {
		t.Fatalf("expected source.Capture to never be called, got %d calls", source.captures)
	}
}
