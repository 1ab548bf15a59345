// Package pwm generates three software PWM outputs from a periodic tick.
//
// Tick runs in interrupt context. Duties are single atomic words, so a
// single-channel update needs no masking; SetColor replaces all three under
// the tick mask so a period never mixes old and new channels.
package pwm

import (
	"sync/atomic"

	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/mathx"
)

// Engine drives one output per channel over a period of types.MaxDuty ticks.
type Engine struct {
	pins      [types.NumChannels]hal.OutputPin
	activeLow bool
	mask      hal.Mask

	duty [types.NumChannels]atomic.Uint32

	// interrupt-owned
	counter atomic.Uint32
	level   [types.NumChannels]bool
	known   bool
}

// New binds the channel outputs. activeLow inverts every physical level, for
// common-anode LEDs.
func New(pins [types.NumChannels]hal.OutputPin, activeLow bool, mask hal.Mask) *Engine {
	e := &Engine{pins: pins, activeLow: activeLow, mask: mask}
	for ch := range e.pins {
		e.write(ch, false)
	}
	e.known = true
	return e
}

func (e *Engine) write(ch int, high bool) {
	e.level[ch] = high
	e.pins[ch].Set(high != e.activeLow)
}

// Tick advances the engine by one tick. Within a period a channel with duty d
// is high for counter values below d, low otherwise. Pins are written only on
// level changes.
func (e *Engine) Tick() {
	c := e.counter.Load()
	for ch := range e.pins {
		high := c < e.duty[ch].Load()
		if !e.known || high != e.level[ch] {
			e.write(ch, high)
		}
	}
	e.known = true
	c++
	if c >= types.MaxDuty {
		c = 0
	}
	e.counter.Store(c)
}

// Counter returns the position within the current period.
func (e *Engine) Counter() uint32 { return e.counter.Load() }

// SetColor replaces the whole triple with the tick masked.
func (e *Engine) SetColor(t types.Triple) {
	t = t.Clamped()
	hal.Critical(e.mask, func() {
		for ch := range t {
			e.duty[ch].Store(uint32(t[ch]))
		}
	})
}

// SetChannel updates one channel.
func (e *Engine) SetChannel(ch types.Channel, d types.Duty) {
	e.duty[ch].Store(uint32(mathx.Clamp(d, 0, types.MaxDuty)))
}

// Increment raises one channel by one step; full duty wraps to off.
func (e *Engine) Increment(ch types.Channel) types.Duty {
	d := types.Duty(e.duty[ch].Load())
	if d >= types.MaxDuty {
		d = 0
	} else {
		d++
	}
	e.SetChannel(ch, d)
	return d
}

// Color returns the current triple.
func (e *Engine) Color() types.Triple {
	var t types.Triple
	for ch := range t {
		t[ch] = types.Duty(e.duty[ch].Load())
	}
	return t
}

// Drive forces every output on or off, bypassing the duties. The caller must
// hold the tick mask; the next Tick rewrites every pin from the duties.
func (e *Engine) Drive(on bool) {
	for ch := range e.pins {
		e.write(ch, on)
	}
	e.known = false
}
