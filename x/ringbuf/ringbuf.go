// Package ringbuf provides a fixed-capacity single-producer, single-consumer
// byte FIFO suitable for an interrupt-fed receive path.
//
// One slot is always left empty so that a full ring can be told apart from an
// empty one: a ring created with capacity C holds at most C-1 bytes.
package ringbuf

import (
	"sync/atomic"

	"github.com/Jagichan/RGBMoodLight/errcode"
)

// Ring is a single-producer, single-consumer byte ring.
// The write cursor is owned by the producer, the read cursor by the consumer.
type Ring struct {
	buf []byte
	rd  atomic.Uint32 // consumer index, modulo len(buf)
	wr  atomic.Uint32 // producer index, modulo len(buf)

	drops atomic.Uint32
}

// New allocates a ring with capacity slots (capacity-1 usable).
func New(capacity int) *Ring {
	if capacity < 2 || capacity > 1<<16 {
		panic("ringbuf: capacity must be in [2, 65536]")
	}
	return &Ring{buf: make([]byte, capacity)}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the number of bytes the ring can hold.
func (r *Ring) Cap() int { return len(r.buf) - 1 }

// Len returns the number of bytes waiting to be read.
func (r *Ring) Len() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int((wr + r.size() - rd) % r.size())
}

func (r *Ring) IsEmpty() bool { return r.rd.Load() == r.wr.Load() }

func (r *Ring) IsFull() bool {
	return (r.wr.Load()+1)%r.size() == r.rd.Load()
}

// Producer side

// Put appends b. When the ring is full the byte is dropped, the drop counter
// is incremented and errcode.BufferFull is returned; nothing already queued is
// overwritten.
func (r *Ring) Put(b byte) error {
	wr := r.wr.Load()
	next := (wr + 1) % r.size()
	if next == r.rd.Load() {
		r.drops.Add(1)
		return errcode.BufferFull
	}
	r.buf[wr] = b
	r.wr.Store(next) // publish
	return nil
}

// Consumer side

// Get removes and returns the oldest byte. ok is false when the ring is empty.
func (r *Ring) Get() (b byte, ok bool) {
	rd := r.rd.Load()
	if rd == r.wr.Load() {
		return 0, false
	}
	b = r.buf[rd]
	r.rd.Store((rd + 1) % r.size()) // release
	return b, true
}

// ReadInto drains up to len(dst) bytes and returns how many were copied.
func (r *Ring) ReadInto(dst []byte) (n int) {
	for n < len(dst) {
		b, ok := r.Get()
		if !ok {
			break
		}
		dst[n] = b
		n++
	}
	return n
}

// Reset zeroes the contents and moves both cursors to the start.
// It writes the producer cursor, so the producer must be quiesced (interrupts
// masked) for the duration of the call.
func (r *Ring) Reset() {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.wr.Store(0)
	r.rd.Store(0)
}

// Drops returns how many bytes were rejected because the ring was full.
func (r *Ring) Drops() uint32 { return r.drops.Load() }
