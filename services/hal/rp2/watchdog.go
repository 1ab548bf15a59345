//go:build rp2040

package rp2

import (
	"machine"
	"time"
)

// Watchdog is the RP2040 hardware watchdog.
type Watchdog struct{}

func (Watchdog) Configure(timeout time.Duration) error {
	return machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: uint32(timeout / time.Millisecond),
	})
}

func (Watchdog) Start() error { return machine.Watchdog.Start() }
func (Watchdog) Update()      { machine.Watchdog.Update() }
