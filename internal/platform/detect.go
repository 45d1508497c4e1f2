// Package platform detects the two inputs to spec.md §6's capture
// selection table: the active windowing system and the GPU vendor.
// Both are plain environment/process probes — not "NvFBC / CUDA / EGL /
// libav ... library loading and symbol binding" (spec.md §1's actual
// non-goal) — so they are implemented directly against the standard
// library rather than deferred behind a hardware interface.
//
// Grounded on _examples/richinsley-bunghole/xserver_linux.go's
// nvidia-smi probe (os/exec, "--query-gpu=...,--format=csv,noheader")
// for GPU identification, and the same file's XDG_SESSION_TYPE=x11
// convention for desktop-kind detection.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/shadow-cast/shadow-cast/internal/media"
)

// DetectDesktop reports the active windowing system from
// $XDG_SESSION_TYPE, falling back to X11 when unset (matching most
// headless/legacy session configurations).
func DetectDesktop() media.DesktopKind {
	switch strings.ToLower(os.Getenv("XDG_SESSION_TYPE")) {
	case "wayland":
		return media.DesktopWayland
	default:
		return media.DesktopX11
	}
}

// DetectGPU shells out to nvidia-smi for the first GPU's name and PCI
// bus ID, per spec.md §6's capture selection table ("NVIDIA" vs "other").
// Returns an error if no NVIDIA GPU is present or nvidia-smi is absent.
func DetectGPU() (media.GPUDescriptor, error) {
	out, err := exec.Command("nvidia-smi", "--query-gpu=name,pci.bus_id", "--format=csv,noheader").Output()
	if err != nil {
		return media.GPUDescriptor{}, fmt.Errorf("platform: nvidia-smi: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return media.GPUDescriptor{}, fmt.Errorf("platform: nvidia-smi reported no GPUs")
	}

	fields := strings.SplitN(lines[0], ",", 2)
	if len(fields) != 2 {
		return media.GPUDescriptor{}, fmt.Errorf("platform: unexpected nvidia-smi output %q", lines[0])
	}
	return media.GPUDescriptor{
		Name:     strings.TrimSpace(fields[0]),
		PCIBusID: strings.TrimSpace(fields[1]),
	}, nil
}
