package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Fixed-capacity byte FIFO shared between layers.
 *
 * Description:	Two of these sit between L1 and L2/L3: ts_s2t (serial to
 *		telnet) and ts_t2s (telnet to serial). A single mutex
 *		with two condition variables (not_empty, not_full) is
 *		simpler to get right than a lock-free ring, and at a few
 *		hundred bytes/sec on a 300-2400 bps carrier there is no
 *		throughput reason to do otherwise.
 *
 *		write() never blocks: it accepts up to the current free
 *		space and reports how much it took. Bytes beyond capacity
 *		are counted as dropped, never silently discarded (spec.md
 *		§4.1, §7). Timed variants (WriteTimeout/ReadTimeout) wait
 *		up to a deadline for space/data before giving the same
 *		partial-acceptance answer.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
	"time"
)

const defaultRingBufferSize = 8192

// RingBuffer is a fixed-capacity single-producer/single-consumer FIFO
// that also tolerates multiple concurrent producers/consumers under its
// one mutex (spec.md §4.1).
type RingBuffer struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf   []byte
	head  int // next byte to read
	count int // bytes currently buffered

	dropped uint64
}

// NewRingBuffer allocates a ring buffer of the given capacity. A
// capacity of 0 uses the spec's default of 8192 bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultRingBufferSize
	}
	rb := &RingBuffer{buf: make([]byte, capacity)}
	rb.notEmpty = sync.NewCond(&rb.mu)
	rb.notFull = sync.NewCond(&rb.mu)
	return rb
}

func (rb *RingBuffer) Cap() int { return len(rb.buf) }

// Len returns the number of buffered bytes available to read.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Dropped returns the cumulative count of bytes rejected by Write
// because the buffer was full.
func (rb *RingBuffer) Dropped() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Write appends up to the current free space and returns how many bytes
// were actually accepted. It never blocks.
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.writeLocked(p)
}

func (rb *RingBuffer) writeLocked(p []byte) int {
	free := len(rb.buf) - rb.count
	n := len(p)
	if n > free {
		rb.dropped += uint64(n - free)
		n = free
	}
	wasEmpty := rb.count == 0
	tail := (rb.head + rb.count) % len(rb.buf)
	for i := 0; i < n; i++ {
		rb.buf[(tail+i)%len(rb.buf)] = p[i]
	}
	rb.count += n
	if wasEmpty && n > 0 {
		rb.notEmpty.Broadcast()
	}
	return n
}

// WriteTimeout behaves like Write but, if the buffer is currently full,
// waits up to deadline for at least one byte of free space to appear
// before giving its partial-acceptance answer.
func (rb *RingBuffer) WriteTimeout(p []byte, deadline time.Time) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.count == len(rb.buf) && len(p) > 0 {
		if !rb.waitUntil(rb.notFull, deadline) {
			break
		}
	}
	return rb.writeLocked(p)
}

// Read drains up to len(p) buffered bytes into p and returns the count.
// It never blocks.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.readLocked(p)
}

func (rb *RingBuffer) readLocked(p []byte) int {
	n := len(p)
	if n > rb.count {
		n = rb.count
	}
	wasFull := rb.count == len(rb.buf)
	for i := 0; i < n; i++ {
		p[i] = rb.buf[(rb.head+i)%len(rb.buf)]
	}
	rb.head = (rb.head + n) % len(rb.buf)
	rb.count -= n
	if wasFull && n > 0 {
		rb.notFull.Broadcast()
	}
	return n
}

// ReadTimeout behaves like Read but, if the buffer is currently empty,
// waits up to deadline for at least one byte to appear.
func (rb *RingBuffer) ReadTimeout(p []byte, deadline time.Time) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.count == 0 {
		if !rb.waitUntil(rb.notEmpty, deadline) {
			break
		}
	}
	return rb.readLocked(p)
}

// waitUntil waits on cond until woken or deadline passes, returning
// false in the latter case. Caller holds rb.mu.
func (rb *RingBuffer) waitUntil(cond *sync.Cond, deadline time.Time) bool {
	if !deadline.After(time.Now()) {
		return false
	}
	done := make(chan struct{})
	timer := time.AfterFunc(time.Until(deadline), func() {
		rb.mu.Lock()
		close(done)
		cond.Broadcast()
		rb.mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
	select {
	case <-done:
		return false
	default:
		return true
	}
}
