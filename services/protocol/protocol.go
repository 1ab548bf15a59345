// Package protocol implements the serial command line: interrupt-side byte
// reception into a ring, line completion, decoding, and the startup banner.
//
// Grammar, per line (CR or LF terminated):
//
//	X or x anywhere      clear the stored colour and resume random mode
//	hex digits RRGGBB    set the user colour; only the low 24 bits are kept
//
// Any other byte decodes as the digit 0. An empty line decodes as 000000.
package protocol

import (
	"sync/atomic"

	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/conv"
	"github.com/Jagichan/RGBMoodLight/x/ringbuf"
)

type Kind uint8

const (
	KindColor Kind = iota
	KindClear
)

func (k Kind) String() string {
	if k == KindClear {
		return "clear"
	}
	return "color"
}

// Command is one decoded line.
type Command struct {
	Kind  Kind
	Color types.Color
}

// IsTerminator reports whether b ends a line.
func IsTerminator(b byte) bool { return b == '\r' || b == '\n' }

// ParseLine decodes a line without its terminator. Decoding never fails.
func ParseLine(line []byte) Command {
	for _, b := range line {
		if b == 'X' || b == 'x' {
			return Command{Kind: KindClear}
		}
	}
	return Command{Kind: KindColor, Color: types.Color(conv.AccumulateHex(line) & 0xFFFFFF)}
}

// Receiver buffers serial bytes between the interrupt and the main loop.
type Receiver struct {
	ring  *ringbuf.Ring
	mask  hal.Mask
	ready atomic.Bool
	line  []byte
}

// NewReceiver allocates a ring of the given capacity (capacity-1 usable).
func NewReceiver(capacity int, mask hal.Mask) *Receiver {
	return &Receiver{
		ring: ringbuf.New(capacity),
		mask: mask,
		line: make([]byte, 0, capacity),
	}
}

// Receive is called from interrupt context for every received byte.
// Terminators are not stored; they flag a complete line. Bytes arriving
// while the ring is full are dropped and counted.
func (r *Receiver) Receive(b byte) {
	if IsTerminator(b) {
		r.ready.Store(true)
		return
	}
	_ = r.ring.Put(b)
}

// Poll returns the pending command once a terminator has been seen. The ring
// is then cleared under the tick mask so leftovers cannot join the next line.
func (r *Receiver) Poll() (Command, bool) {
	if !r.ready.Load() {
		return Command{}, false
	}
	n := r.ring.ReadInto(r.line[:cap(r.line)])
	cmd := ParseLine(r.line[:n])
	hal.Critical(r.mask, func() {
		r.ring.Reset()
		r.ready.Store(false)
	})
	return cmd, true
}

// Pending reports whether a complete line awaits Poll.
func (r *Receiver) Pending() bool { return r.ready.Load() }

// Dropped counts bytes lost to a full ring.
func (r *Receiver) Dropped() uint32 { return r.ring.Drops() }

// Buffered returns the number of bytes waiting in the ring.
func (r *Receiver) Buffered() int { return r.ring.Len() }
