package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/logging"
)

type fakeContainer struct {
	mu            sync.Mutex
	headerErr     error
	trailerErr    error
	headerCalls   int
	trailerCalls  int
}

func (c *fakeContainer) WriteHeader() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headerCalls++
	return c.headerErr
}

func (c *fakeContainer) WriteTrailer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trailerCalls++
	return c.trailerErr
}

func (c *fakeContainer) Close() error { return nil }

type fakeCapture struct {
	mu         sync.Mutex
	cancelled  bool
	cancelCh   chan struct{}
	runFunc    func(cancelled <-chan struct{}) error
}

func newFakeCapture(runFunc func(cancelled <-chan struct{}) error) *fakeCapture {
	return &fakeCapture{cancelCh: make(chan struct{}), runFunc: runFunc}
}

func (f *fakeCapture) Run() error { return f.runFunc(f.cancelCh) }

func (f *fakeCapture) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cancelled {
		f.cancelled = true
		close(f.cancelCh)
	}
}

type fakeCancelSource struct {
	ch chan struct{}
}

func newFakeCancelSource() *fakeCancelSource { return &fakeCancelSource{ch: make(chan struct{})} }
func (f *fakeCancelSource) Done() <-chan struct{} { return f.ch }
func (f *fakeCancelSource) Trigger()              { close(f.ch) }

// fakeMuxer is a Muxer that never fails unless Fail is called.
type fakeMuxer struct {
	mu        sync.Mutex
	err       error
	errSignal chan struct{}
}

func newFakeMuxer() *fakeMuxer { return &fakeMuxer{errSignal: make(chan struct{})} }

func (f *fakeMuxer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeMuxer) ErrSignal() <-chan struct{} { return f.errSignal }

func (f *fakeMuxer) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err == nil {
		f.err = err
		close(f.errSignal)
	}
}

func cancelledErr() error { return errkind.New(errkind.Cancelled, "test", nil) }

func TestCoordinatorCleanRunWritesTrailerOnce(t *testing.T) {
	container := &fakeContainer{}
	video := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		return cancelledErr()
	})
	audio := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		return cancelledErr()
	})
	cancel := newFakeCancelSource()

	coord := New(container, video, audio, newFakeMuxer(), cancel, logging.Discard())

	done := make(chan error, 1)
	go func() { done <- coord.Run() }()

	time.Sleep(10 * time.Millisecond)
	cancel.Trigger()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean completion, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("coordinator did not complete")
	}

	if container.headerCalls != 1 {
		t.Fatalf("expected exactly one write_header, got %d", container.headerCalls)
	}
	if container.trailerCalls != 1 {
		t.Fatalf("expected exactly one write_trailer, got %d", container.trailerCalls)
	}
}

func TestCoordinatorOneCaptureFailureCancelsTheOtherAndPropagatesError(t *testing.T) {
	container := &fakeContainer{}
	wantErr := errors.New("gpu exploded")

	video := newFakeCapture(func(cancelled <-chan struct{}) error {
		return wantErr
	})
	audioCancelled := make(chan struct{}, 1)
	audio := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		audioCancelled <- struct{}{}
		return cancelledErr()
	})
	cancel := newFakeCancelSource()

	coord := New(container, video, audio, newFakeMuxer(), cancel, logging.Discard())

	err := coord.Run()
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected video's error to win, got %v", err)
	}
	select {
	case <-audioCancelled:
	case <-time.After(time.Second):
		t.Fatal("expected the audio capture to be cancelled after video's failure")
	}
	if container.trailerCalls != 1 {
		t.Fatalf("expected trailer attempted exactly once even on failure, got %d", container.trailerCalls)
	}
}

func TestCoordinatorCancelDuringFlushStillCompletesOk(t *testing.T) {
	container := &fakeContainer{}
	flushStarted := make(chan struct{})
	flushDone := make(chan struct{})

	video := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		return cancelledErr()
	})
	audio := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		close(flushStarted)
		time.Sleep(20 * time.Millisecond) // simulate flush in progress
		close(flushDone)
		return cancelledErr()
	})
	cancel := newFakeCancelSource()

	coord := New(container, video, audio, newFakeMuxer(), cancel, logging.Discard())
	done := make(chan error, 1)
	go func() { done <- coord.Run() }()

	cancel.Trigger()
	<-flushStarted

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Ok completion, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("coordinator did not complete")
	}
	select {
	case <-flushDone:
	default:
		t.Fatal("expected flush to have run to completion before session completed")
	}
	if container.trailerCalls != 1 {
		t.Fatalf("expected trailer written once, got %d", container.trailerCalls)
	}
}

func TestCoordinatorHeaderFailureSkipsCapturesAndTrailer(t *testing.T) {
	wantErr := errors.New("no space left on device")
	container := &fakeContainer{headerErr: wantErr}
	video := newFakeCapture(func(cancelled <-chan struct{}) error { return nil })
	audio := newFakeCapture(func(cancelled <-chan struct{}) error { return nil })
	cancel := newFakeCancelSource()

	coord := New(container, video, audio, newFakeMuxer(), cancel, logging.Discard())
	err := coord.Run()
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected header error, got %v", err)
	}
	if container.trailerCalls != 0 {
		t.Fatalf("expected no trailer attempt when header never succeeded, got %d", container.trailerCalls)
	}
}

func TestCoordinatorMuxerFailureCancelsBothCapturesAndIsFatal(t *testing.T) {
	container := &fakeContainer{}
	muxer := newFakeMuxer()
	wantErr := errkind.New(errkind.MuxerFailure, "test", errors.New("no space left on device"))

	videoCancelled := make(chan struct{}, 1)
	video := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		videoCancelled <- struct{}{}
		return cancelledErr()
	})
	audioCancelled := make(chan struct{}, 1)
	audio := newFakeCapture(func(cancelled <-chan struct{}) error {
		<-cancelled
		audioCancelled <- struct{}{}
		return cancelledErr()
	})
	cancel := newFakeCancelSource()

	coord := New(container, video, audio, muxer, cancel, logging.Discard())

	done := make(chan error, 1)
	go func() { done <- coord.Run() }()

	time.Sleep(10 * time.Millisecond)
	muxer.Fail(wantErr)

	select {
	case <-videoCancelled:
	case <-time.After(time.Second):
		t.Fatal("expected video capture to be cancelled after a muxer failure")
	}
	select {
	case <-audioCancelled:
	case <-time.After(time.Second):
		t.Fatal("expected audio capture to be cancelled after a muxer failure")
	}

	select {
	case err := <-done:
		if !errors.Is(err, wantErr) {
			t.Fatalf("expected the muxer failure to be the fatal session error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("coordinator did not complete")
	}
	if container.trailerCalls != 1 {
		t.Fatalf("expected trailer attempted exactly once even on a muxer failure, got %d", container.trailerCalls)
	}
}
