// Package pwaudio implements the PipeWire audio Capture Source of
// spec.md §4.1: a PulseAudio-protocol client (PipeWire speaks the Pulse
// wire protocol for compatibility) that accumulates raw PCM into a
// Dynamic buffer and hands off fixed-size frames to the audio encoder
// once a full batch of samples is available.
//
// Grounded on _examples/richinsley-bunghole/internal/audio/pulse_linux.go's
// jfreymuth/pulse client/record-stream setup (pulse.NewClient,
// client.DefaultSink, client.NewRecord with RecordMonitor/RecordStereo/
// RecordSampleRate/RecordBufferFragmentSize) and its pcmCollector's
// pulse.Writer implementation, generalized from bunghole's fixed 20ms
// Opus frame size to the audio encoder's configured FrameSize(). The
// frame-population sequence (SetSampleFormat/SetChannelLayout/
// SetSampleRate/SetNbSamples/AllocBuffer, then writing through
// Data().Bytes(0)) mirrors _examples/e1z0-QAnotherRTSP/src/video.go's own
// audio re-encode path line for line.
package pwaudio

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"github.com/shadow-cast/shadow-cast/internal/buffer"
	"github.com/shadow-cast/shadow-cast/internal/cancel"
	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/media"
)

// NativeFormat is the fixed wire format captured off the PipeWire/Pulse
// monitor source: interleaved, 16-bit signed, stereo (spec.md §4.1).
var NativeFormat = media.SampleFormat{Kind: media.SampleS16, Planar: false, Channels: 2}

// bytesPerFrame is one stereo S16 sample pair's byte size.
var bytesPerFrame = NativeFormat.BytesPerFrame()

// accumulator is the mutex-guarded PCM ring the collector fills and
// Source.Capture drains in whole-frame units, triggering the sticky
// cancel event each time a new complete frame becomes available.
type accumulator struct {
	mu        sync.Mutex
	buf       buffer.Dynamic
	pending   int // complete, not-yet-consumed frameSize-sample frames
	frameSize int // samples per frame, i.e. audioenc.Sink.FrameSize()
	event     *cancel.Event
}

func newAccumulator(frameSize int, event *cancel.Event) *accumulator {
	return &accumulator{frameSize: frameSize, event: event}
}

// Write implements pulse.Writer: it appends raw PCM bytes and triggers
// the event once more whole frames become available.
func (a *accumulator) Write(data []byte) (int, error) {
	a.mu.Lock()
	slot := a.buf.Prepare(len(data))
	copy(slot, data)
	a.buf.Commit(len(data))

	frameBytes := a.frameSize * bytesPerFrame
	before := a.pending
	if frameBytes > 0 {
		a.pending = a.buf.Size() / frameBytes
	}
	delta := a.pending - before
	a.mu.Unlock()

	if delta > 0 {
		a.event.TriggerWithValue(uint64(delta))
	}
	return len(data), nil
}

// Format implements pulse.Writer.
func (a *accumulator) Format() byte { return proto.FormatInt16LE }

// take removes exactly one frame's worth of bytes from the front of the
// buffer. The caller must already have consumed one unit from the event
// (i.e. this is only called once WaitForEvent has returned nil).
func (a *accumulator) take() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.frameSize * bytesPerFrame
	out := make([]byte, n)
	copy(out, a.buf.Bytes()[:n])
	a.buf.Consume(n)
	if a.pending > 0 {
		a.pending--
	}
	return out
}

// Config is the subset of spec.md §6 CLI-level parameters the PipeWire
// source needs, plus the channel layout the session wires once at
// startup (see internal/audioenc.Config's doc comment).
type Config struct {
	SampleRate    int
	FrameSize     int // audioenc.Sink.FrameSize()
	ChannelLayout astiav.ChannelLayout
}

// Source is the PipeWire audio Capture Source. S = *astiav.Frame, filled
// in the source's native stereo S16 layout; internal/audioenc.Sink
// resamples it into the encoder's configured layout.
type Source struct {
	cfg    Config
	client *pulse.Client
	stream *pulse.RecordStream
	acc    *accumulator
	event  *cancel.Event

	samplesWritten int64
}

// New builds a Source; the PipeWire/Pulse client connection is opened in
// Init, not here, per capture.Source's Init/Deinit lifecycle.
func New(cfg Config) *Source {
	event := cancel.NewEvent()
	return &Source{
		cfg:   cfg,
		acc:   newAccumulator(cfg.FrameSize, event),
		event: event,
	}
}

func (s *Source) Name() string         { return "pwaudio" }
func (s *Source) Event() *cancel.Event { return s.event }

// Init connects to the PipeWire/Pulse socket, opens a monitor record
// stream on the default sink's monitor source, and starts it (spec.md
// §4.1's PipeWire capture setup).
func (s *Source) Init() error {
	client, err := pulse.NewClient(pulse.ClientApplicationName("shadow-cast"))
	if err != nil {
		return errkind.New(errkind.CaptureFailure, "pwaudio.init", err)
	}

	sink, err := client.DefaultSink()
	if err != nil {
		client.Close()
		return errkind.New(errkind.CaptureFailure, "pwaudio.init", err)
	}

	fragmentBytes := uint32(s.cfg.FrameSize * bytesPerFrame)
	stream, err := client.NewRecord(
		s.acc,
		pulse.RecordMonitor(sink),
		pulse.RecordStereo,
		pulse.RecordSampleRate(s.cfg.SampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
	)
	if err != nil {
		client.Close()
		return errkind.New(errkind.CaptureFailure, "pwaudio.init", err)
	}

	s.client = client
	s.stream = stream
	stream.Start()
	return nil
}

// Deinit stops the record stream and closes the client connection.
func (s *Source) Deinit() error {
	if s.stream != nil {
		s.stream.Stop()
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Capture waits for one complete frame's worth of accumulated samples
// (the sole suspension point, per internal/capture/audioloop.go's "no
// double-wait" design), transfers them into frame's native-layout
// buffer, and stamps a running sample-count presentation timestamp.
func (s *Source) Capture(frame *astiav.Frame) error {
	if err := s.event.WaitForEvent(); err != nil {
		return err
	}

	raw := s.acc.take()

	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetChannelLayout(s.cfg.ChannelLayout)
	frame.SetSampleRate(s.cfg.SampleRate)
	frame.SetNbSamples(s.cfg.FrameSize)

	if err := frame.AllocBuffer(0); err != nil {
		return errkind.New(errkind.CaptureFailure, "pwaudio.capture", err)
	}

	planes, err := frame.Data().Bytes(0)
	if err != nil || len(planes) == 0 {
		return errkind.New(errkind.CaptureFailure, "pwaudio.capture", fmt.Errorf("no frame data planes: %w", err))
	}
	if len(planes[0]) < len(raw) {
		return errkind.New(errkind.CaptureFailure, "pwaudio.capture",
			fmt.Errorf("frame plane too small: got %d bytes, need %d", len(planes[0]), len(raw)))
	}
	copy(planes[0], raw)

	frame.SetPts(s.samplesWritten)
	s.samplesWritten += int64(s.cfg.FrameSize)
	return nil
}
