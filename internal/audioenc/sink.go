// Package audioenc implements the generic audio Capture Sink (spec.md
// §4.2): picks a codec by name (default AAC), filters it against the
// configured sample rate and a recognized-sample-format allowlist,
// resamples the source frame into the encoder's layout, and drains
// packets onto the shared packet queue.
package audioenc

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/muxer"
	"github.com/shadow-cast/shadow-cast/internal/queue"
)

// DefaultCodecName is used when Config.CodecName is empty.
const DefaultCodecName = "aac"

// defaultFrameSize is used when the chosen codec accepts a variable
// number of samples per frame (FrameSize() reports 0).
const defaultFrameSize = 1024

// BitRateTier selects one of spec.md §4.2's three bit-rate tiers.
type BitRateTier int

const (
	BitRateMinimum BitRateTier = iota
	BitRateLow
	BitRateStandard
)

// BitsPerSecond returns the tier's fixed bit rate: 64 kb/s, 96 kb/s, or
// 128 kb/s.
func (t BitRateTier) BitsPerSecond() int64 {
	switch t {
	case BitRateMinimum:
		return 64_000
	case BitRateLow:
		return 96_000
	default:
		return 128_000
	}
}

// Config is the subset of spec.md §6 CLI-level parameters the audio
// encoder needs. ChannelLayout is supplied by the caller (stereo per
// spec.md §4.2) since go-astiav's channel-layout constructors are never
// exercised anywhere in the retrieved pack; the session wires a fixed
// stereo layout built once at startup.
type Config struct {
	CodecName     string
	SampleRate    int
	BitRate       BitRateTier
	ChannelLayout astiav.ChannelLayout
}

// Sink is the generic audio Capture Sink. S = *astiav.Frame (raw PCM in
// the source's native layout).
type Sink struct {
	codecCtx  *astiav.CodecContext
	swr       *astiav.SoftwareResampleContext
	encFrame  *astiav.Frame
	queue     *queue.Queue
	stream    *muxer.StreamHandle
	frameSize int
}

// New selects and opens the audio codec, applying spec.md §4.2's
// filtering and bit-rate rules.
func New(cfg Config, q *queue.Queue) (*Sink, error) {
	name := cfg.CodecName
	if name == "" {
		name = DefaultCodecName
	}
	if cfg.SampleRate <= 0 {
		return nil, errkind.New(errkind.ConfigError, "audioenc.new", fmt.Errorf("sample rate must be > 0"))
	}

	codec := astiav.FindEncoderByName(name)
	if codec == nil {
		return nil, errkind.New(errkind.EncoderFailure, "audioenc.new", fmt.Errorf("encoder %q not found", name))
	}
	if !supportsSampleRate(codec.SampleRates(), cfg.SampleRate) {
		return nil, errkind.New(errkind.EncoderFailure, "audioenc.new",
			fmt.Errorf("encoder %q does not support sample rate %d", name, cfg.SampleRate))
	}
	sampleFormat, ok := pickSampleFormat(codec.SampleFormats())
	if !ok {
		return nil, errkind.New(errkind.EncoderFailure, "audioenc.new",
			fmt.Errorf("encoder %q exposes no recognized sample format", name))
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, errkind.New(errkind.EncoderFailure, "audioenc.new", fmt.Errorf("alloc codec context failed"))
	}

	ctx.SetSampleRate(cfg.SampleRate)
	ctx.SetSampleFormat(sampleFormat)
	ctx.SetChannelLayout(cfg.ChannelLayout)
	ctx.SetTimeBase(astiav.NewRational(1, cfg.SampleRate))
	ctx.SetBitRate(cfg.BitRate.BitsPerSecond())
	ctx.SetStrictStdCompliance(astiav.StrictStdComplianceExperimental)

	if err := ctx.Open(codec, nil); err != nil {
		ctx.Free()
		return nil, errkind.New(errkind.EncoderFailure, "audioenc.new", err)
	}

	frameSize := ctx.FrameSize()
	if frameSize <= 0 {
		frameSize = defaultFrameSize
	}

	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		ctx.Free()
		return nil, errkind.New(errkind.EncoderFailure, "audioenc.new", fmt.Errorf("alloc resample context failed"))
	}

	return &Sink{
		codecCtx:  ctx,
		swr:       swr,
		encFrame:  astiav.AllocFrame(),
		queue:     q,
		frameSize: frameSize,
	}, nil
}

// supportsSampleRate mirrors the codec-capability convention where an
// empty list means "no restriction" (spec.md §4.2: "codecs whose list
// of supported sample rates includes the configured one").
func supportsSampleRate(rates []int, configured int) bool {
	if len(rates) == 0 {
		return true
	}
	for _, r := range rates {
		if r == configured {
			return true
		}
	}
	return false
}

// pickSampleFormat returns the first of supported that is a recognized
// PCM sample format, per spec.md §4.2.
func pickSampleFormat(supported []astiav.SampleFormat) (astiav.SampleFormat, bool) {
	for _, f := range supported {
		if isRecognizedSampleFormat(f) {
			return f, true
		}
	}
	return 0, false
}

func isRecognizedSampleFormat(f astiav.SampleFormat) bool {
	switch f {
	case astiav.SampleFormatU8, astiav.SampleFormatS16, astiav.SampleFormatS32,
		astiav.SampleFormatFlt, astiav.SampleFormatDbl,
		astiav.SampleFormatU8P, astiav.SampleFormatS16P, astiav.SampleFormatS32P,
		astiav.SampleFormatFltp, astiav.SampleFormatDblp,
		astiav.SampleFormatS64, astiav.SampleFormatS64P:
		return true
	default:
		return false
	}
}

// FrameSize reports the number of samples per frame the encoder was
// opened with (its preferred size, or 1024 if it accepts any size) —
// the unit the audio source's accumulator batches samples into.
func (s *Sink) FrameSize() int { return s.frameSize }

// BindStream registers this sink's codec with the muxer.
func (s *Sink) BindStream(container *muxer.Container) error {
	h, err := container.AddStream(s.codecCtx)
	if err != nil {
		return err
	}
	s.stream = h
	return nil
}

// Stream returns the handle BindStream recorded, for wiring the muxer
// consumer's stream-index lookup.
func (s *Sink) Stream() *muxer.StreamHandle { return s.stream }

// Prepare returns nothing to acquire — the audio source owns its raw PCM
// frame and fills it directly; see doc comment on capture.AudioSource.
// This method exists to satisfy capture.Sink and always succeeds,
// returning a fresh frame with the source's native layout unset (the
// source stamps it during Capture).
func (s *Sink) Prepare() (*astiav.Frame, error) {
	return astiav.AllocFrame(), nil
}

// Write resamples the filled source frame into the encoder's layout,
// sends it, and drains resulting packets onto the packet queue.
func (s *Sink) Write(srcFrame *astiav.Frame) error {
	defer srcFrame.Free()

	s.encFrame.SetSampleFormat(s.codecCtx.SampleFormat())
	s.encFrame.SetChannelLayout(s.codecCtx.ChannelLayout())
	s.encFrame.SetSampleRate(s.codecCtx.SampleRate())
	s.encFrame.SetNbSamples(s.frameSize)

	if err := s.encFrame.AllocBuffer(0); err != nil {
		return errkind.New(errkind.EncoderFailure, "audioenc.write", err)
	}
	if err := s.swr.ConvertFrame(srcFrame, s.encFrame); err != nil {
		s.encFrame.Unref()
		return errkind.New(errkind.EncoderFailure, "audioenc.write", err)
	}

	if err := s.codecCtx.SendFrame(s.encFrame); err != nil && !errors.Is(err, astiav.ErrEagain) {
		s.encFrame.Unref()
		return errkind.New(errkind.EncoderFailure, "audioenc.write", err)
	}
	s.encFrame.Unref()

	return s.drainPackets()
}

// Flush sends a null frame (end-of-stream) and drains remaining packets.
func (s *Sink) Flush() error {
	if err := s.codecCtx.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return errkind.New(errkind.EncoderFailure, "audioenc.flush", err)
	}
	return s.drainPackets()
}

func (s *Sink) drainPackets() error {
	for {
		pkt := astiav.AllocPacket()
		err := s.codecCtx.ReceivePacket(pkt)
		if err != nil {
			pkt.Free()
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return nil
			}
			return errkind.New(errkind.EncoderFailure, "audioenc.receive_packet", err)
		}

		item := s.queue.Acquire()
		if err := item.Packet.Ref(pkt); err != nil {
			pkt.Free()
			s.queue.Release(item)
			return errkind.New(errkind.EncoderFailure, "audioenc.receive_packet", err)
		}
		item.Size = pkt.Size()
		item.StreamIndex = s.stream.Index()
		pkt.Free()

		if !s.queue.Enqueue(item) {
			s.queue.Release(item)
		}
	}
}

// Close frees the codec context, resampler, and scratch frame.
func (s *Sink) Close() error {
	if s.swr != nil {
		s.swr.Free()
		s.swr = nil
	}
	if s.encFrame != nil {
		s.encFrame.Free()
		s.encFrame = nil
	}
	if s.codecCtx != nil {
		s.codecCtx.Free()
		s.codecCtx = nil
	}
	return nil
}
