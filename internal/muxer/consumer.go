package muxer

import (
	"sync"

	"github.com/asticode/go-astiav"

	"github.com/shadow-cast/shadow-cast/internal/logging"
	"github.com/shadow-cast/shadow-cast/internal/queue"
)

// packetWriter is the subset of *Container the consumer drives; factored
// out so the drain loop can be exercised against a fake in tests without
// a real astiav FormatContext.
type packetWriter interface {
	WritePacket(h *StreamHandle, pkt *astiav.Packet) error
}

// Consumer is the dedicated muxer packet-writer (spec.md §4.6): it
// dequeues items, writes them via the container, and returns them to the
// pool, until the queue is shut down and drained.
type Consumer struct {
	queue     *queue.Queue
	container packetWriter
	streams   map[int]*StreamHandle
	log       *logging.Logger

	done      chan struct{}
	errMu     sync.Mutex
	err       error
	errSignal chan struct{}
}

// NewConsumer builds a Consumer over q and container. streams maps a
// queue item's StreamIndex to the StreamHandle WritePacket needs; the
// session wires one entry per AddStream/AddStreamCopy call before
// starting Run.
func NewConsumer(q *queue.Queue, container *Container, streams map[int]*StreamHandle, log *logging.Logger) *Consumer {
	return &Consumer{
		queue:     q,
		container: container,
		streams:   streams,
		log:       log,
		done:      make(chan struct{}),
		errSignal: make(chan struct{}),
	}
}

// Run drains the queue until shutdown, writing each packet to its
// stream. Intended to run on its own goroutine; Done closes once the
// queue reports shut-down-and-empty. A write failure is logged, stored
// for Err, and signalled immediately via ErrSignal — it does not stop
// the drain, so the queue never deadlocks a producer blocked in
// sink.write waiting for space. ErrSignal lets a caller holding the
// session open react to a MuxerFailure (spec.md §7) before the drain
// loop itself ever finishes.
func (c *Consumer) Run() {
	defer close(c.done)
	for {
		it, ok := c.queue.Dequeue()
		if !ok {
			return
		}

		h, known := c.streams[it.StreamIndex]
		if !known {
			c.log.Errorf("muxer_consumer: packet for unknown stream index %d dropped", it.StreamIndex)
			c.queue.Release(it)
			continue
		}

		if err := c.container.WritePacket(h, it.Packet); err != nil {
			c.setErr(err)
			c.log.Warnf("muxer_consumer: write_frame failed: %v", err)
		}
		c.queue.Release(it)
	}
}

// Done reports when Run has returned (queue shut down and drained).
func (c *Consumer) Done() <-chan struct{} { return c.done }

// ErrSignal closes the instant the first write failure is recorded,
// independently of Done — a session coordinator selects on this to
// cancel an in-flight recording on a MuxerFailure rather than waiting
// for the drain loop to finish on its own.
func (c *Consumer) ErrSignal() <-chan struct{} { return c.errSignal }

// Err returns the first write failure observed, if any. Safe to call
// any time; guaranteed populated once ErrSignal or Done has closed.
func (c *Consumer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Consumer) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
		close(c.errSignal)
	}
}
