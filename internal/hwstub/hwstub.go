// Package hwstub provides placeholder implementations of the hardware
// interfaces spec.md §1 excludes from scope ("NvFBC / CUDA / EGL / ...
// library loading and symbol binding"): internal/nvfbc.Grabber/Copier
// and internal/dmabuf.Importer. Each method fails clearly at call time
// rather than compiling out the capture-selection dispatch that needs a
// concrete value to construct internal/nvfbc.Source/internal/dmabuf.Source.
//
// Mirrors the teacher's own platform-stub convention in
// src/darwin_stub.go: a real implementation is a platform/driver-gated
// file that satisfies the same interface; until one is built for this
// host, the stub reports why the capture path is unavailable instead of
// leaving the dispatch table unbuildable.
package hwstub

import (
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/drmhelper"
)

// Grabber satisfies internal/nvfbc.Grabber.
type Grabber struct{}

func (Grabber) GrabFrame() (uintptr, int, error) {
	return 0, 0, fmt.Errorf("hwstub: NvFBC capture requires a build with NvFBC library binding, which is out of scope here")
}

// Copier satisfies internal/nvfbc.Copier.
type Copier struct{}

func (Copier) Copy2D(dst *astiav.Frame, src uintptr, srcPitch int) error {
	return fmt.Errorf("hwstub: CUDA 2D memcpy requires a build with CUDA library binding, which is out of scope here")
}

// Importer satisfies internal/dmabuf.Importer.
type Importer struct{}

func (Importer) Import(dst *astiav.Frame, desktop drmhelper.PlaneDescriptor, cursor *drmhelper.PlaneDescriptor) error {
	return fmt.Errorf("hwstub: DMA-BUF/EGL/CUDA import requires a build with EGL/CUDA library binding, which is out of scope here")
}
