// Package media holds the plain data types shared across the capture,
// encode, and mux stages: sizes, sample formats, quality/bit-rate
// selection, and the media chunk used for PCM accumulation.
package media

import "fmt"

// OutputSize is a width x height pair in pixels. It carries no capture
// override or output scale; the scale is the separate Scale type below.
// Invariant: Width > 0 && Height > 0 once Validate passes.
type OutputSize struct {
	Width  int
	Height int
}

func (s OutputSize) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("media: output size must be positive, got %dx%d", s.Width, s.Height)
	}
	return nil
}

// Scale is the width/height factor the GPU color-conversion collaborator
// applies when a capture override resolution differs from the desktop's
// native size.
type Scale struct {
	Width  float64
	Height float64
}

// RateControlMode selects the encoder's rate-control strategy.
type RateControlMode int

const (
	RateControlCBR RateControlMode = iota
	RateControlVBR
)

// Quality is either a constant bit-rate in bits/second (> 0) or a 1..10
// quality level mapped to a constant-quality value; the two are mutually
// exclusive, matching spec.md §3 "Capture Quality / Bit-rate".
type Quality struct {
	Mode      RateControlMode
	BitRate   int64 // bits/second; used when Mode == RateControlCBR
	Level     int   // 1..10; used when Mode == RateControlVBR
}

// NewCBR builds a constant-bitrate quality selection.
func NewCBR(bitsPerSecond int64) (Quality, error) {
	if bitsPerSecond <= 0 {
		return Quality{}, fmt.Errorf("media: bitrate must be > 0, got %d", bitsPerSecond)
	}
	return Quality{Mode: RateControlCBR, BitRate: bitsPerSecond}, nil
}

// NewVBR builds a constant-quality selection from a 1..10 level input.
func NewVBR(level int) (Quality, error) {
	if level < 1 || level > 10 {
		return Quality{}, fmt.Errorf("media: quality level must be in 1..10, got %d", level)
	}
	return Quality{Mode: RateControlVBR, Level: level}, nil
}

// ConstantQualityValue maps a 1..10 quality level linearly onto the
// inverse of the codec's constant-quality range [lo..hi] (lower is
// better, e.g. NVENC's cq range is [18..51]), per spec.md §4.2.
func (q Quality) ConstantQualityValue(lo, hi int) int {
	if q.Mode != RateControlVBR {
		panic("media: ConstantQualityValue called on a non-VBR Quality")
	}
	// Level 10 (best) -> lo; level 1 (worst) -> hi.
	span := float64(hi - lo)
	frac := float64(q.Level-1) / 9.0
	return hi - int(frac*span+0.5)
}

// SampleKind is the scalar sample encoding: unsigned/signed integer or
// floating point, at a given width.
type SampleKind int

const (
	SampleU8 SampleKind = iota
	SampleS16
	SampleS32
	SampleF32
	SampleF64
	SampleS64
)

// BytesPerSample returns the storage width of one scalar sample.
func (k SampleKind) BytesPerSample() int {
	switch k {
	case SampleU8:
		return 1
	case SampleS16:
		return 2
	case SampleS32, SampleF32:
		return 4
	case SampleF64, SampleS64:
		return 8
	default:
		panic(fmt.Sprintf("media: unknown sample kind %d", k))
	}
}

// SampleFormat is the tagged variant over {kind} x {interleaved, planar}
// of spec.md §3. Invariant: planarity determines per-channel buffer
// count — 1 for interleaved, N (channel count) for planar.
type SampleFormat struct {
	Kind     SampleKind
	Planar   bool
	Channels int
}

// BufferCount returns how many distinct per-channel buffers a chunk in
// this format must carry.
func (f SampleFormat) BufferCount() int {
	if f.Planar {
		return f.Channels
	}
	return 1
}

// BytesPerFrame is the byte size of one multi-channel sample: for
// interleaved data this is samplesize*channels; for planar data each
// channel buffer advances independently by samplesize per frame.
func (f SampleFormat) BytesPerFrame() int {
	if f.Planar {
		return f.Kind.BytesPerSample()
	}
	return f.Kind.BytesPerSample() * f.Channels
}

// Chunk is a timestamped batch of audio samples: a timestamp in
// milliseconds since the process clock's epoch, a sample count, and one
// dynamic byte buffer per channel (or a single interleaved buffer).
// Invariant: for planar formats len(Buffers) == Channels; for interleaved,
// len(Buffers) == 1 and its length is a multiple of BytesPerFrame().
type Chunk struct {
	TimestampMs int64
	NumSamples  int
	Buffers     [][]byte
}

// Validate checks the Chunk's buffer-count/length invariants against fmt.
func (c Chunk) Validate(format SampleFormat) error {
	want := format.BufferCount()
	if len(c.Buffers) != want {
		return fmt.Errorf("media: chunk has %d buffers, format requires %d", len(c.Buffers), want)
	}
	if !format.Planar {
		n := format.Kind.BytesPerSample() * format.Channels
		if n > 0 && len(c.Buffers[0])%n != 0 {
			return fmt.Errorf("media: interleaved chunk length %d is not a multiple of %d", len(c.Buffers[0]), n)
		}
	}
	return nil
}

// StreamDescriptor is a per-stream record: an index and a time base
// (num/den). It does not carry codec parameters.
type StreamDescriptor struct {
	Index       int
	TimeBaseNum int
	TimeBaseDen int
}

// GPUDescriptor identifies the selected NVIDIA device deterministically by
// PCI bus ID, grounded on nvfbc_gpu.cpp / bunghole's cuDeviceGetByPCIBusId
// path (spec.md §6 capture selection table requires "NVIDIA" GPUs only).
type GPUDescriptor struct {
	Name      string
	PCIBusID  string
}

// DesktopKind distinguishes the two supported windowing systems.
type DesktopKind int

const (
	DesktopX11 DesktopKind = iota
	DesktopWayland
)

// DesktopDescriptor carries the negotiated native output size for the
// active desktop session.
type DesktopDescriptor struct {
	Kind DesktopKind
	Size OutputSize
}
