// Package session implements the Session Coordinator (spec.md §4.7): it
// owns one container, one video capture, one audio capture; arms
// cancellation against both; joins both completions; and writes the
// trailer exactly once regardless of which capture finishes first or
// whether either failed.
package session

import (
	"errors"
	"sync"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/logging"
)

// Container is the subset of *muxer.Container the session drives
// directly; factored into an interface so Run is testable with a fake.
type Container interface {
	WriteHeader() error
	WriteTrailer() error
	Close() error
}

// Capture is one of the two concurrent captures (video or audio) the
// session coordinates: a blocking Run and a Cancel that is safe to call
// before, during, or after Run, any number of times.
type Capture interface {
	Run() error
	Cancel()
}

// CancelSource is the session-level cancel signal (e.g. SIGINT/SIGTERM
// delivery, or a test driver): Done closes exactly once.
type CancelSource interface {
	Done() <-chan struct{}
}

// Muxer is the subset of *muxer.Consumer the coordinator watches for a
// fatal container write failure. ErrSignal closes the instant Err
// becomes non-nil, which may happen at any point while video/audio are
// still running — spec.md §7 makes a MuxerFailure fatal to the whole
// session, so the coordinator must cancel both captures as soon as it
// happens rather than only noticing it after they finish on their own.
type Muxer interface {
	Err() error
	ErrSignal() <-chan struct{}
}

// Coordinator is the Session Coordinator of spec.md §4.7.
type Coordinator struct {
	container Container
	video     Capture
	audio     Capture
	muxer     Muxer
	cancel    CancelSource
	log       *logging.Logger
}

// New builds a Coordinator over an already-constructed container, the
// two capture pairs selected per spec.md §6's selection table, and the
// muxer consumer draining the shared packet queue.
func New(container Container, video, audio Capture, muxer Muxer, cancel CancelSource, log *logging.Logger) *Coordinator {
	return &Coordinator{container: container, video: video, audio: audio, muxer: muxer, cancel: cancel, log: log}
}

// Run implements the algorithm of spec.md §4.7 steps 4-6: write the
// header, arm cancellation, run both captures concurrently, and once
// both have finalized, write the trailer exactly once and return the
// first non-cancel error either capture produced, or the muxer's write
// failure if neither capture reported one (nil if everything finished
// cleanly).
func (c *Coordinator) Run() error {
	if err := c.container.WriteHeader(); err != nil {
		return err
	}

	armed := make(chan struct{})
	go func() {
		select {
		case <-c.cancel.Done():
			c.video.Cancel()
			c.audio.Cancel()
		case <-c.muxer.ErrSignal():
			// A MuxerFailure is fatal to the whole session (spec.md §7):
			// stop both captures immediately rather than let them run to
			// natural completion against a container that can no longer
			// accept packets.
			c.video.Cancel()
			c.audio.Cancel()
		case <-armed:
		}
	}()
	defer close(armed)

	var (
		mu        sync.Mutex
		remaining = 2
		stored    error
	)

	onComplete := func(err error) {
		mu.Lock()
		defer mu.Unlock()

		remaining--
		if remaining > 0 {
			// A single failure brings the session down; cancellation of
			// the sibling is idempotent if it's already exiting on its
			// own.
			c.video.Cancel()
			c.audio.Cancel()
			if stored == nil && err != nil && !errors.Is(err, errkind.IsCancelled) {
				stored = err
			}
			return
		}

		// remaining == 0: last one out writes the trailer, once.
		if stored == nil && err != nil && !errors.Is(err, errkind.IsCancelled) {
			stored = err
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		onComplete(c.video.Run())
	}()
	go func() {
		defer wg.Done()
		onComplete(c.audio.Run())
	}()
	wg.Wait()

	trailerErr := c.container.WriteTrailer()

	mu.Lock()
	result := stored
	mu.Unlock()

	if result == nil {
		// Neither capture reported a failure of its own; a live container
		// write failure is still fatal even if both captures otherwise
		// drained cleanly after being cancelled.
		result = c.muxer.Err()
	}

	if result == nil {
		return trailerErr
	}
	if trailerErr != nil {
		c.log.Warnf("session: write_trailer failed after a capture error: %v", trailerErr)
	}
	return result
}
