// Package nvenc implements the NVENC video Capture Sink (spec.md §4.2):
// a hardware-frame pool sized to the encoder's width×height, CBR/VBR
// rate control, and packet emission onto the shared packet queue.
//
// Allocating and populating the underlying CUDA hw_frames_ctx is NvFBC/
// CUDA/EGL "library loading and symbol binding" — explicitly out of
// scope per spec.md §1 — so it is consumed here through the FramePool
// interface rather than implemented inline; a concrete implementation
// lives in internal/gpu, grounded on
// _examples/richinsley-bunghole/internal/encode/ffmpeg_linux.go's
// hw_device_ctx/hw_frames_ctx setup.
package nvenc

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/media"
	"github.com/shadow-cast/shadow-cast/internal/muxer"
	"github.com/shadow-cast/shadow-cast/internal/queue"
)

// FramePool vends the pooled hardware frames prepare()/write() operate
// on, per spec.md §4.2 "allocates a CUDA hardware frame context ... with
// a one-frame pool; prepare acquires a pooled hardware frame".
type FramePool interface {
	Acquire() (*astiav.Frame, error)
	Release(*astiav.Frame)
	Close() error
}

// Config is the subset of spec.md §6 CLI-level parameters the video
// encoder needs: resolution, frame rate, codec name and quality.
type Config struct {
	Size      media.OutputSize
	FrameRate int
	CodecName string // e.g. "h264_nvenc", "hevc_nvenc"
	Quality   media.Quality
}

// cqRangeLow/cqRangeHigh bound the codec's constant-quality parameter,
// per spec.md §4.2's "inverse of the codec CQ range [18..51]".
const (
	cqRangeLow  = 18
	cqRangeHigh = 51
	gopFactor   = 2
	maxBFrames  = 2
	preset      = "p5"
)

// Sink is the NVENC video Capture Sink. S = *astiav.Frame.
type Sink struct {
	codecCtx *astiav.CodecContext
	pool     FramePool
	queue    *queue.Queue
	stream   *muxer.StreamHandle
	pts      int64
}

// New builds the codec context (per spec.md §4.2's rate-control
// algorithm) and opens it, ready to receive frames from pool.
func New(cfg Config, pool FramePool, q *queue.Queue) (*Sink, error) {
	if err := cfg.Size.Validate(); err != nil {
		return nil, errkind.New(errkind.ConfigError, "nvenc.new", err)
	}
	if cfg.FrameRate <= 0 {
		return nil, errkind.New(errkind.ConfigError, "nvenc.new", fmt.Errorf("frame rate must be > 0"))
	}

	codec := astiav.FindEncoderByName(cfg.CodecName)
	if codec == nil {
		return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", fmt.Errorf("encoder %q not found", cfg.CodecName))
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", fmt.Errorf("alloc codec context failed"))
	}

	ctx.SetWidth(cfg.Size.Width)
	ctx.SetHeight(cfg.Size.Height)
	ctx.SetPixelFormat(astiav.PixelFormatCuda)
	ctx.SetTimeBase(astiav.NewRational(1, cfg.FrameRate))
	ctx.SetFramerate(astiav.NewRational(cfg.FrameRate, 1))
	ctx.SetGopSize(gopFactor * cfg.FrameRate)
	ctx.SetMaxBFrames(maxBFrames)

	opts := astiav.NewDictionary()
	defer opts.Free()
	if err := opts.Set("preset", preset, 0); err != nil {
		ctx.Free()
		return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
	}

	switch cfg.Quality.Mode {
	case media.RateControlCBR:
		ctx.SetBitRate(cfg.Quality.BitRate)
		if err := opts.Set("rc", "cbr", 0); err != nil {
			ctx.Free()
			return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
		}
	case media.RateControlVBR:
		cq := cfg.Quality.ConstantQualityValue(cqRangeLow, cqRangeHigh)
		if err := opts.Set("rc", "vbr", 0); err != nil {
			ctx.Free()
			return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
		}
		if err := opts.Set("cq", fmt.Sprintf("%d", cq), 0); err != nil {
			ctx.Free()
			return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
		}
	default:
		ctx.Free()
		return nil, errkind.New(errkind.ConfigError, "nvenc.new", fmt.Errorf("unknown rate control mode %d", cfg.Quality.Mode))
	}

	if isH264(cfg.CodecName) {
		if err := opts.Set("profile", "high", 0); err != nil {
			ctx.Free()
			return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
		}
		if err := opts.Set("coder", "cavlc", 0); err != nil {
			ctx.Free()
			return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
		}
	}

	if err := ctx.Open(codec, opts); err != nil {
		ctx.Free()
		return nil, errkind.New(errkind.EncoderFailure, "nvenc.new", err)
	}

	return &Sink{codecCtx: ctx, pool: pool, queue: q}, nil
}

func isH264(codecName string) bool {
	return codecName == "h264_nvenc"
}

// BindStream registers this sink's codec with the muxer, recording the
// resulting stream handle for subsequent Write calls.
func (s *Sink) BindStream(container *muxer.Container) error {
	h, err := container.AddStream(s.codecCtx)
	if err != nil {
		return err
	}
	s.stream = h
	return nil
}

// CodecContext exposes the underlying codec context, e.g. for the
// session to read width/height/pixel format when building the hardware
// frame pool.
func (s *Sink) CodecContext() *astiav.CodecContext { return s.codecCtx }

// Stream returns the handle BindStream recorded, for wiring the muxer
// consumer's stream-index lookup.
func (s *Sink) Stream() *muxer.StreamHandle { return s.stream }

// Prepare acquires a pooled hardware frame and stamps it with the next
// presentation timestamp. No suspension is permitted here (spec.md §5);
// FramePool.Acquire must not block on I/O.
func (s *Sink) Prepare() (*astiav.Frame, error) {
	frame, err := s.pool.Acquire()
	if err != nil {
		return nil, errkind.New(errkind.GpuFailure, "nvenc.prepare", err)
	}
	frame.SetPts(s.pts)
	s.pts++
	return frame, nil
}

// Write sends the filled frame to the encoder and drains any packets it
// yields onto the packet queue.
func (s *Sink) Write(frame *astiav.Frame) error {
	defer s.pool.Release(frame)

	if err := s.codecCtx.SendFrame(frame); err != nil {
		return errkind.New(errkind.EncoderFailure, "nvenc.write", err)
	}
	return s.drainPackets()
}

// Flush signals end-of-stream to the encoder and drains its remaining
// packets.
func (s *Sink) Flush() error {
	if err := s.codecCtx.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return errkind.New(errkind.EncoderFailure, "nvenc.flush", err)
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
			return errkind.New(errkind.EncoderFailure, "nvenc.receive_packet", err)
		}

		item := s.queue.Acquire()
		if err := item.Packet.Ref(pkt); err != nil {
			pkt.Free()
			s.queue.Release(item)
			return errkind.New(errkind.EncoderFailure, "nvenc.receive_packet", err)
		}
		item.Size = pkt.Size()
		item.StreamIndex = s.stream.Index()
		pkt.Free()

		if !s.queue.Enqueue(item) {
			s.queue.Release(item)
		}
	}
}

// Close frees the underlying codec context and frame pool.
func (s *Sink) Close() error {
	if s.codecCtx != nil {
		s.codecCtx.Free()
		s.codecCtx = nil
	}
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}
