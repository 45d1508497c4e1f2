package nvfbc

import (
	"errors"
	"testing"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

type fakeGrabber struct {
	ptr   uintptr
	pitch int
	err   error
	calls int
}

func (g *fakeGrabber) GrabFrame() (uintptr, int, error) {
	g.calls++
	return g.ptr, g.pitch, g.err
}

type fakeCopier struct {
	err      error
	gotSrc   uintptr
	gotPitch int
	calls    int
}

func (c *fakeCopier) Copy2D(dst *astiav.Frame, src uintptr, srcPitch int) error {
	c.calls++
	c.gotSrc = src
	c.gotPitch = srcPitch
	return c.err
}

func TestSourceCaptureStampsIncreasingPts(t *testing.T) {
	grabber := &fakeGrabber{ptr: 0xdeadbeef, pitch: 256}
	copier := &fakeCopier{}
	src := New(grabber, copier, 16*time.Millisecond)
	frame := astiav.AllocFrame()
	defer frame.Free()

	for i := 0; i < 3; i++ {
		if err := src.Capture(frame); err != nil {
			t.Fatalf("capture %d: unexpected error %v", i, err)
		}
	}
	if copier.calls != 3 {
		t.Fatalf("expected 3 copies, got %d", copier.calls)
	}
	if src.pts != 3 {
		t.Fatalf("expected pts counter at 3, got %d", src.pts)
	}
}

func TestSourceCaptureGrabFailureIsCaptureFailure(t *testing.T) {
	wantErr := errors.New("NVFBC_ERROR_GENERIC")
	grabber := &fakeGrabber{err: wantErr}
	copier := &fakeCopier{}
	src := New(grabber, copier, time.Millisecond)

	err := src.Capture(nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errkind.IsKind(err, errkind.CaptureFailure) {
		t.Fatalf("expected a CaptureFailure, got %v", err)
	}
	if copier.calls != 0 {
		t.Fatal("expected no copy attempt after a failed grab")
	}
}

func TestSourceCaptureCopyFailureIsGpuFailure(t *testing.T) {
	grabber := &fakeGrabber{ptr: 1, pitch: 128}
	copier := &fakeCopier{err: errors.New("cuMemcpy2D failed")}
	src := New(grabber, copier, time.Millisecond)

	err := src.Capture(nil)
	if err == nil {
		t.Fatal("expected an error from the failed copy")
	}
	if !errkind.IsKind(err, errkind.GpuFailure) {
		t.Fatalf("expected a GpuFailure, got %v", err)
	}
}

func TestSourceIntervalAndName(t *testing.T) {
	src := New(&fakeGrabber{}, &fakeCopier{}, 16*time.Millisecond)
	if src.Interval() != 16*time.Millisecond {
		t.Fatalf("unexpected interval %v", src.Interval())
	}
	if src.Name() != "nvfbc" {
		t.Fatalf("unexpected name %q", src.Name())
	}
	if src.Timer() == nil {
		t.Fatal("expected a non-nil timer")
	}
}
