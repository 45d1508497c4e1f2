// Package dmabuf implements the DMA-BUF/EGL/CUDA video Capture Source of
// spec.md §4.1 (Wayland + NVIDIA path): fetches plane descriptors from
// the DRM helper (internal/drmhelper), picks the desktop and cursor
// planes, imports them, and produces one device-memory frame per tick.
//
// "GPU color-space conversion and the DMA-BUF → EGLImage → CUDA-array
// import path" and "NvFBC / CUDA / EGL / libav... library loading and
// symbol binding" are both explicitly out of scope (spec.md §1); this
// package consumes the import step as the Importer interface below — the
// same "hardware binding behind an interface" boundary as
// internal/nvfbc's Grabber/Copier and internal/nvenc's FramePool. A
// hardware implementation binds EGL/GL/CUDA behind Importer, grounded on
// the DMA-BUF→EGLImage→external-texture→CUDA-array pipeline described in
// original_source/experimental/drm_cuda_capture_source.hpp and
// platform/egl.hpp/wayland.hpp.
package dmabuf

import (
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"golang.org/x/sys/unix"

	"github.com/shadow-cast/shadow-cast/internal/cancel"
	"github.com/shadow-cast/shadow-cast/internal/drmhelper"
	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

// PlaneFetcher is the subset of *drmhelper.Client the source consumes.
type PlaneFetcher interface {
	GetPlanes() ([]drmhelper.PlaneDescriptor, error)
}

// Importer performs the DMA-BUF → EGLImage → CUDA-array import and the
// color-conversion pass that produces the configured pixel-format output
// in dst, per spec.md §4.1. All EGLImage/CUDA resources it acquires must
// be released on every exit path, success or failure.
type Importer interface {
	Import(dst *astiav.Frame, desktop drmhelper.PlaneDescriptor, cursor *drmhelper.PlaneDescriptor) error
}

// Source is the DMA-BUF video Capture Source (spec.md §4.1).
type Source struct {
	fetcher  PlaneFetcher
	importer Importer
	interval time.Duration
	timer    *cancel.Timer
	pts      int64
}

// New builds a Source fetching planes through fetcher and importing them
// through importer, ticking at interval.
func New(fetcher PlaneFetcher, importer Importer, interval time.Duration) *Source {
	return &Source{
		fetcher:  fetcher,
		importer: importer,
		interval: interval,
		timer:    cancel.NewTimer(),
	}
}

func (s *Source) Name() string            { return "dmabuf" }
func (s *Source) Init() error             { return nil }
func (s *Source) Deinit() error           { return nil }
func (s *Source) Interval() time.Duration { return s.interval }
func (s *Source) Timer() *cancel.Timer    { return s.timer }

// Capture fetches one set of plane descriptors, selects the desktop
// (largest) and cursor (IS_CURSOR-flagged) planes, imports them into
// frame, and stamps a monotonically increasing presentation timestamp.
// Every received descriptor's fd is closed before returning, on every
// exit path (spec.md §4.1: "Closes all received dma-buf descriptors").
func (s *Source) Capture(frame *astiav.Frame) error {
	planes, err := s.fetcher.GetPlanes()
	if err != nil {
		return errkind.New(errkind.CaptureFailure, "dmabuf.capture", err)
	}
	defer closeAll(planes)

	if len(planes) == 0 {
		return errkind.New(errkind.CaptureFailure, "dmabuf.capture", fmt.Errorf("helper returned no planes"))
	}

	desktop, cursor := selectPlanes(planes)

	if err := s.importer.Import(frame, desktop, cursor); err != nil {
		return errkind.New(errkind.GpuFailure, "dmabuf.capture", err)
	}

	frame.SetPts(s.pts)
	s.pts++
	return nil
}

// selectPlanes picks the largest plane by pixel area as the desktop
// image and the first IS_CURSOR-flagged plane, if any, as the overlay
// (spec.md §4.1).
func selectPlanes(planes []drmhelper.PlaneDescriptor) (desktop drmhelper.PlaneDescriptor, cursor *drmhelper.PlaneDescriptor) {
	var best int64 = -1
	for i := range planes {
		p := planes[i]
		if p.IsCursor() {
			if cursor == nil {
				c := p
				cursor = &c
			}
			continue
		}
		area := int64(p.Width) * int64(p.Height)
		if area > best {
			best = area
			desktop = p
		}
	}
	return desktop, cursor
}

func closeAll(planes []drmhelper.PlaneDescriptor) {
	for _, p := range planes {
		unix.Close(int(p.FD))
	}
}
