// Package nvfbc implements the NvFBC video Capture Source of spec.md
// §4.1 (X11 + NVIDIA path): an interval-driven source that grabs one
// frame to CUDA per tick with the non-wait flag and copies the result
// into the sink's hardware frame.
//
// NvFBC/CUDA library loading and symbol binding is explicitly out of
// scope (spec.md §1's non-goals). This package consumes both through the
// Grabber and Copier interfaces below — the same "hardware binding
// behind an interface" boundary already used by internal/nvenc.FramePool
// and internal/gpu.Pool. A hardware implementation binds
// NvFBCCreateInstance/nvFBCToCudaGrabFrame and cuMemcpy2D behind these
// interfaces, grounded on the grab/frame-pointer/stride sequence in
// _examples/richinsley-bunghole/internal/capture/nvfbc_linux.go's
// nvfbc_init/nvfbc_grab/nvfbc_frame_ptr.
package nvfbc

import (
	"time"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/cancel"
	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

// Grabber is one NvFBC TOCUDA session: one non-wait grab per tick,
// mirroring nvfbc_grab's semantics. ptr is the device pointer to the
// grabbed frame; pitch is its row stride in bytes.
type Grabber interface {
	GrabFrame() (ptr uintptr, pitch int, err error)
}

// Copier performs the 2D device-to-device memcpy of a grabbed frame's
// plane 0 into the sink's hardware frame, matching pitches to the
// encoder's linesize, per spec.md §4.1's NvFBC variant description.
type Copier interface {
	Copy2D(dst *astiav.Frame, src uintptr, srcPitch int) error
}

// Source is the NvFBC video Capture Source (spec.md §4.1).
type Source struct {
	grabber  Grabber
	copier   Copier
	interval time.Duration
	timer    *cancel.Timer
	pts      int64
}

// New builds a Source over an already-initialized grabber/copier pair
// (see the package doc comment) ticking at interval.
func New(grabber Grabber, copier Copier, interval time.Duration) *Source {
	return &Source{
		grabber:  grabber,
		copier:   copier,
		interval: interval,
		timer:    cancel.NewTimer(),
	}
}

func (s *Source) Name() string            { return "nvfbc" }
func (s *Source) Init() error             { return nil }
func (s *Source) Deinit() error           { return nil }
func (s *Source) Interval() time.Duration { return s.interval }
func (s *Source) Timer() *cancel.Timer    { return s.timer }

// Capture grabs one frame to CUDA and copies it into frame's plane 0,
// stamping a monotonically increasing presentation timestamp. Fails with
// CaptureFailure if the grab itself fails, or GpuFailure if the copy
// fails (spec.md §4.1).
func (s *Source) Capture(frame *astiav.Frame) error {
	ptr, pitch, err := s.grabber.GrabFrame()
	if err != nil {
		return errkind.New(errkind.CaptureFailure, "nvfbc.capture", err)
	}

	if err := s.copier.Copy2D(frame, ptr, pitch); err != nil {
		return errkind.New(errkind.GpuFailure, "nvfbc.capture", err)
	}

	frame.SetPts(s.pts)
	s.pts++
	return nil
}
