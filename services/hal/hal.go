// Package hal names the board services the light controller depends on:
// channel outputs, button inputs, interrupt masking and the watchdog.
// Implementations live in hal/host (simulation and tests) and hal/rp2
// (Raspberry Pi Pico).
package hal

import "time"

// OutputPin drives one channel line.
type OutputPin interface {
	Set(level bool)
}

// InputPin reads the raw electrical level of a line.
type InputPin interface {
	Get() bool
}

// Mask suppresses the tick interrupt. Disable returns the previous state,
// which must be handed back to Restore. Calls nest.
type Mask interface {
	Disable() uintptr
	Restore(state uintptr)
}

// Critical runs fn with the tick interrupt masked. The previous mask state is
// restored on every exit path, including a panic in fn.
func Critical(m Mask, fn func()) {
	state := m.Disable()
	defer m.Restore(state)
	fn()
}

// Watchdog resets the board unless it is updated within the configured timeout.
type Watchdog interface {
	Configure(timeout time.Duration) error
	Start() error
	Update()
}

// Button adapts a raw input line to a pressed/released reading.
type Button struct {
	Pin       InputPin
	ActiveLow bool
}

// Pressed reports the logical state of the button.
func (b Button) Pressed() bool {
	lvl := b.Pin.Get()
	if b.ActiveLow {
		return !lvl
	}
	return lvl
}

// NopWatchdog is used where no watchdog exists.
type NopWatchdog struct{}

func (NopWatchdog) Configure(time.Duration) error { return nil }
func (NopWatchdog) Start() error                  { return nil }
func (NopWatchdog) Update()                       {}
