// Package gpu identifies the selected NVIDIA device and provides the
// one-frame hardware frame pool the NVENC sink (internal/nvenc) acquires
// and releases frames from. Device binding — creating a CUDA context,
// importing a DMA-BUF/EGL image into it, NvFBC symbol binding — is the
// "NvFBC / CUDA / EGL / libav... library loading and symbol binding"
// explicitly out of scope per spec.md §1; this package owns only the
// device-selection value type and the pool interface boundary that a
// hardware bring-up swaps in behind, grounded on
// original_source/experimental/nvfbc_gpu.hpp's separation of device
// selection (Descriptor) from session/context lifetime (Pool).
package gpu

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

// Descriptor identifies one NVIDIA device deterministically, the way
// nvfbc_gpu.cpp/gpu.cpp pick a device by PCI bus ID rather than by
// enumeration order.
type Descriptor struct {
	Name   string
	PCIBus string
}

func (d Descriptor) String() string {
	if d.PCIBus == "" {
		return d.Name
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.PCIBus)
}

// Pool is the one-frame hardware frame pool behind nvenc.Sink's
// FramePool contract. It satisfies the interface with plain astiav
// frame allocation sized to the sink's configured dimensions and pixel
// format; a CUDA-backed implementation swaps in behind the same
// interface once device binding is wired (see the package doc comment).
type Pool struct {
	width, height int
	swFormat      astiav.PixelFormat
	device        Descriptor
}

// NewPool builds a frame pool for one width×height sw_format frame.
func NewPool(device Descriptor, width, height int, swFormat astiav.PixelFormat) (*Pool, error) {
	if width <= 0 || height <= 0 {
		return nil, errkind.New(errkind.ConfigError, "gpu.new_pool", fmt.Errorf("invalid dimensions %dx%d", width, height))
	}
	return &Pool{width: width, height: height, swFormat: swFormat, device: device}, nil
}

// Acquire returns a freshly allocated frame stamped with this pool's
// dimensions and pixel format, ready for the sink to stamp a PTS onto
// and the source to fill.
func (p *Pool) Acquire() (*astiav.Frame, error) {
	f := astiav.AllocFrame()
	if f == nil {
		return nil, errkind.New(errkind.GpuFailure, "gpu.acquire", fmt.Errorf("alloc frame failed"))
	}
	f.SetWidth(p.width)
	f.SetHeight(p.height)
	f.SetPixelFormat(p.swFormat)
	if err := f.AllocBuffer(0); err != nil {
		f.Free()
		return nil, errkind.New(errkind.GpuFailure, "gpu.acquire", err)
	}
	return f, nil
}

// Release returns a frame's buffers; with only a one-frame pool there is
// nothing to recycle beyond freeing it.
func (p *Pool) Release(f *astiav.Frame) {
	if f != nil {
		f.Free()
	}
}

// Close is a no-op for the software-backed pool; present so Pool
// satisfies nvenc.FramePool's lifecycle contract.
func (p *Pool) Close() error { return nil }
