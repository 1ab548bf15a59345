package types

import (
	"github.com/Jagichan/RGBMoodLight/x/conv"
	"github.com/Jagichan/RGBMoodLight/x/mathx"
)

// MaxDuty is the number of ticks in one PWM period.
const MaxDuty = 100

// Duty is the share of a PWM period a channel is held high, in [0,MaxDuty].
type Duty uint8

// Channel indexes a colour channel.
type Channel uint8

const (
	Red Channel = iota
	Green
	Blue
	NumChannels
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	}
	return "?"
}

// Triple holds one duty per channel, indexed by Channel.
type Triple [NumChannels]Duty

// IsZero reports whether every channel is off.
func (t Triple) IsZero() bool { return t == Triple{} }

// Clamped returns t with every channel limited to MaxDuty.
func (t Triple) Clamped() Triple {
	for i := range t {
		t[i] = mathx.Clamp(t[i], 0, MaxDuty)
	}
	return t
}

// ScaleChannel maps a raw 0..255 component to a duty, truncating.
func ScaleChannel(raw uint8) Duty {
	return Duty(mathx.MapU16(uint16(raw), 0, 255, 0, MaxDuty))
}

// Color is a 24-bit RRGGBB value. Bits above 23 are ignored.
type Color uint32

// RGB composes a colour from three 8-bit components.
func RGB(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

func (c Color) R() uint8 { return uint8(c >> 16) }
func (c Color) G() uint8 { return uint8(c >> 8) }
func (c Color) B() uint8 { return uint8(c) }

// Triple scales each component to a duty.
func (c Color) Triple() Triple {
	return Triple{ScaleChannel(c.R()), ScaleChannel(c.G()), ScaleChannel(c.B())}
}

// Hex renders the colour as six uppercase hex digits.
func (c Color) Hex() string {
	var buf [6]byte
	return string(conv.U24Hex(buf[:], uint32(c)))
}
