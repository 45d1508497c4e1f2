package pwaudio

import (
	"testing"
	"time"

	"github.com/jfreymuth/pulse/proto"

	"github.com/shadow-cast/shadow-cast/internal/cancel"
)

func TestAccumulatorTriggersEventOnceFrameComplete(t *testing.T) {
	event := cancel.NewEvent()
	acc := newAccumulator(2, event) // 2 samples/frame = 8 bytes/frame (stereo S16)

	// First half: no complete frame yet, so a wait stays blocked.
	acc.Write(make([]byte, 4))
	waited := make(chan error, 1)
	go func() { waited <- event.WaitForEvent() }()
	select {
	case <-waited:
		t.Fatal("expected no event yet after a partial frame")
	case <-time.After(20 * time.Millisecond):
	}

	// Second half completes one frame, which releases the pending wait.
	acc.Write(make([]byte, 4))
	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("expected the event to be pending, got error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the completed frame to release the pending wait")
	}
}

func TestAccumulatorTriggersMultipleFramesInOneWrite(t *testing.T) {
	event := cancel.NewEvent()
	acc := newAccumulator(2, event) // 8 bytes/frame

	acc.Write(make([]byte, 24)) // 3 complete frames in one write

	for i := 0; i < 3; i++ {
		if err := event.WaitForEvent(); err != nil {
			t.Fatalf("expected frame %d pending, got %v", i, err)
		}
	}
	fourth := make(chan error, 1)
	go func() { fourth <- event.WaitForEvent() }()
	select {
	case <-fourth:
		t.Fatal("expected exactly 3 pending frames, got a 4th")
	case <-time.After(20 * time.Millisecond):
	}
	event.Cancel() // release the blocked wait
}

func TestAccumulatorTakeReturnsExactFrameBytesAndDecrementsPending(t *testing.T) {
	event := cancel.NewEvent()
	acc := newAccumulator(2, event)

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	acc.Write(payload)

	got := acc.take()
	if len(got) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(got))
	}
	for i, b := range got {
		if b != payload[i] {
			t.Fatalf("byte %d: got %d, want %d", i, b, payload[i])
		}
	}
	if acc.pending != 0 {
		t.Fatalf("expected pending to drop to 0, got %d", acc.pending)
	}
}

func TestAccumulatorFormatReportsInt16LE(t *testing.T) {
	acc := newAccumulator(1, cancel.NewEvent())
	if acc.Format() != proto.FormatInt16LE {
		t.Fatalf("unexpected format byte %d", acc.Format())
	}
}

func TestSourceNameAndEvent(t *testing.T) {
	src := New(Config{SampleRate: 48000, FrameSize: 1024})
	if src.Name() != "pwaudio" {
		t.Fatalf("unexpected name %q", src.Name())
	}
	if src.Event() == nil {
		t.Fatal("expected a non-nil event")
	}
}
