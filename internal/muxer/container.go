// Package muxer owns the output media container (spec.md §4.6): it opens
// the file once, allocates streams on demand, writes the header once,
// accepts encoded packets rescaled into each stream's time base, and
// writes the trailer once. It is the sole writer of the container's I/O;
// encoders never touch it directly.
package muxer

import (
	"errors"
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
)

// StreamHandle identifies one container stream and carries the time-base
// pair (encoder, container) packets for it must be rescaled between.
type StreamHandle struct {
	index           int
	encoderTimeBase astiav.Rational
	streamTimeBase  astiav.Rational
}

// Index returns the container stream index, matching the original's
// "add_stream returns an increasing stream index" contract.
func (h *StreamHandle) Index() int { return h.index }

// Container wraps an astiav output FormatContext for one recording.
// Grounded on src/video.go's recorder block (AllocOutputFormatContext,
// OpenIOContext, NewStream/CodecParameters.Copy, WriteHeader,
// WriteInterleavedFrame, WriteTrailer), generalized from a hardcoded
// stream-copy+AAC-reencode pair into add_stream/write_frame operations
// for an arbitrary set of encoder-owned streams.
type Container struct {
	mu             sync.Mutex
	fc             *astiav.FormatContext
	pb             *astiav.IOContext
	headerWritten  bool
	trailerWritten bool
}

// New allocates an MP4 output format context at path and opens its I/O
// context for writing. The container owns both until Close.
func New(path string) (*Container, error) {
	fc, err := astiav.AllocOutputFormatContext(nil, "mp4", path)
	if err != nil || fc == nil {
		return nil, errkind.New(errkind.MuxerFailure, "muxer.new", err)
	}

	ioFlags := astiav.NewIOContextFlags(astiav.IOContextFlagWrite)
	pb, err := astiav.OpenIOContext(path, ioFlags, nil, nil)
	if err != nil {
		fc.Free()
		return nil, errkind.New(errkind.MuxerFailure, "muxer.new", err)
	}
	fc.SetPb(pb)

	return &Container{fc: fc, pb: pb}, nil
}

// AddStream declares a new container stream carrying encCtx's codec
// parameters and time base, and returns a handle write_frame calls
// against. Must be called before WriteHeader.
func (c *Container) AddStream(encCtx *astiav.CodecContext) (*StreamHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.fc.NewStream(nil)
	if s == nil {
		return nil, errkind.New(errkind.MuxerFailure, "muxer.add_stream", nil)
	}
	if err := encCtx.ToCodecParameters(s.CodecParameters()); err != nil {
		return nil, errkind.New(errkind.MuxerFailure, "muxer.add_stream", err)
	}
	s.SetTimeBase(encCtx.TimeBase())

	return &StreamHandle{
		index:           s.Index(),
		encoderTimeBase: encCtx.TimeBase(),
		streamTimeBase:  s.TimeBase(),
	}, nil
}

// AddStreamCopy declares a stream whose codec parameters are copied
// as-is from an existing stream (stream-copy, no re-encode), matching
// src/video.go's video-stream handling in its recorder block.
func (c *Container) AddStreamCopy(src *astiav.Stream) (*StreamHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.fc.NewStream(nil)
	if s == nil {
		return nil, errkind.New(errkind.MuxerFailure, "muxer.add_stream_copy", nil)
	}
	if err := src.CodecParameters().Copy(s.CodecParameters()); err != nil {
		return nil, errkind.New(errkind.MuxerFailure, "muxer.add_stream_copy", err)
	}
	s.SetTimeBase(src.TimeBase())

	return &StreamHandle{
		index:           s.Index(),
		encoderTimeBase: src.TimeBase(),
		streamTimeBase:  s.TimeBase(),
	}, nil
}

// WriteHeader writes the container header exactly once; subsequent calls
// are no-ops (spec.md §5's "header is written before any packet").
func (c *Container) WriteHeader() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headerWritten {
		return nil
	}
	if err := c.fc.WriteHeader(nil); err != nil {
		return errkind.New(errkind.MuxerFailure, "muxer.write_header", err)
	}
	c.headerWritten = true
	return nil
}

// WritePacket rescales pkt from the handle's encoder time base into the
// container stream's time base, stamps its stream index, and writes it
// via av_interleaved_write_frame. Safe to call concurrently for packets
// belonging to different streams; internally serialized.
func (c *Container) WritePacket(h *StreamHandle, pkt *astiav.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pkt.SetStreamIndex(h.index)
	pkt.RescaleTs(h.encoderTimeBase, h.streamTimeBase)
	if err := c.fc.WriteInterleavedFrame(pkt); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return errkind.New(errkind.MuxerFailure, "muxer.write_frame", err)
	}
	return nil
}

// WriteTrailer writes the container trailer exactly once. Per spec.md
// §4.7's atomicity note, it is attempted even if the session already
// failed; its own outcome never overwrites a prior stored error.
func (c *Container) WriteTrailer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trailerWritten {
		return nil
	}
	c.trailerWritten = true
	if err := c.fc.WriteTrailer(); err != nil {
		return errkind.New(errkind.MuxerFailure, "muxer.write_trailer", err)
	}
	return nil
}

// Close releases the I/O context and format context. Call after
// WriteTrailer (or on an aborted open where WriteHeader never ran).
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.pb != nil {
		if cerr := c.pb.Close(); cerr != nil {
			err = errkind.New(errkind.MuxerFailure, "muxer.close", cerr)
		}
		c.pb.Free()
		c.pb = nil
	}
	if c.fc != nil {
		c.fc.Free()
		c.fc = nil
	}
	return err
}
