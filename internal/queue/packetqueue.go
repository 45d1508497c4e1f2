// Package queue implements the bounded packet queue between encoders and
// the muxer consumer (spec.md §4.6 "Packet queue"): a FIFO bounded by
// cumulative packet-byte capacity, blocking the producer on full and the
// consumer on empty, serialized by two condition variables as the original
// "item-available"/"space-available" pair.
package queue

import (
	"container/list"
	"sync"

	"github.com/asticode/go-astiav"
)

// DefaultCapacityBytes is the 10MB default from spec.md §4.6.
const DefaultCapacityBytes = 10 * 1024 * 1024

// Item is a pooled container around one encoded packet, with list linkage
// supplied implicitly by container/list. Acquire it via (*Queue).Acquire,
// populate it (copy the encoder's packet into Packet via Packet.Ref, set
// Size to the byte size that counts against queue capacity, and set
// StreamIndex to the muxer stream this packet belongs to), Enqueue it;
// the muxer consumer Dequeues it, writes it, and returns it to the pool
// with Release.
type Item struct {
	Packet      *astiav.Packet
	Size        int
	StreamIndex int
}

// Queue is a bounded FIFO of *Item ordered by byte-size capacity.
type Queue struct {
	pool sync.Pool

	mu            sync.Mutex
	itemAvailable *sync.Cond
	spaceAvailable *sync.Cond
	items         *list.List
	bytes         int64
	capacityBytes int64
	shutdown      bool
}

// New builds a Queue bounded by capacityBytes (use DefaultCapacityBytes
// for spec.md's default).
func New(capacityBytes int64) *Queue {
	q := &Queue{
		items:         list.New(),
		capacityBytes: capacityBytes,
	}
	q.itemAvailable = sync.NewCond(&q.mu)
	q.spaceAvailable = sync.NewCond(&q.mu)
	q.pool.New = func() any { return &Item{Packet: astiav.AllocPacket()} }
	return q
}

// Acquire returns a pooled Item ready to be populated by an encoder.
func (q *Queue) Acquire() *Item {
	return q.pool.Get().(*Item)
}

// Release returns an Item to the pool after the muxer consumer has
// written it. The packet is unreffed but not freed, so the pool can reuse
// its underlying allocation on the next Acquire.
func (q *Queue) Release(it *Item) {
	it.Packet.Unref()
	it.Size = 0
	it.StreamIndex = 0
	q.pool.Put(it)
}

// Enqueue blocks while adding it's byte size would exceed capacity, unless
// the queue is empty (an empty queue admits an item of any size), then
// appends it and signals any blocked Dequeue. Returns false if the queue
// has been shut down and the item was not accepted (the producer should
// Release it itself in that case).
func (q *Queue) Enqueue(it *Item) bool {
	size := int64(it.Size)

	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.shutdown && q.bytes > 0 && q.bytes+size > q.capacityBytes {
		q.spaceAvailable.Wait()
	}
	if q.shutdown {
		return false
	}

	q.items.PushBack(it)
	q.bytes += size
	q.itemAvailable.Signal()
	return true
}

// Dequeue blocks while empty, then removes and returns the head item,
// releasing its Size from the tracked byte total. Returns ok=false only
// once the queue is both shut down and drained.
func (q *Queue) Dequeue() (it *Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		if q.shutdown {
			return nil, false
		}
		q.itemAvailable.Wait()
	}

	front := q.items.Front()
	q.items.Remove(front)
	it = front.Value.(*Item)
	q.bytes -= int64(it.Size)
	q.spaceAvailable.Signal()
	return it, true
}

// Shutdown marks the queue closed: blocked Enqueue calls return false,
// and Dequeue drains remaining items before returning ok=false, matching
// "the thread runs until a shutdown flag is set AND the queue is empty".
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.shutdown = true
	q.itemAvailable.Broadcast()
	q.spaceAvailable.Broadcast()
	q.mu.Unlock()
}

// Len reports the current queue depth, for diagnostics/tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Bytes reports the currently tracked cumulative packet byte size.
func (q *Queue) Bytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}
