// Package config holds the firmware's tunables.
package config

import (
	"time"

	"github.com/Jagichan/RGBMoodLight/bus"
	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/services/nvstore"
	"github.com/Jagichan/RGBMoodLight/services/protocol"
)

const configPrefix = "config"

// Config is the complete firmware configuration.
type Config struct {
	Device string

	TickPeriod   time.Duration // PWM tick; one period is 100 ticks
	RingCapacity int           // serial ring slots, one is kept free

	Debounce time.Duration

	BlinkOn     time.Duration
	BlinkOff    time.Duration
	SaveBlinks  int
	UserBlinks  int
	ResetBlinks int

	RandomHold time.Duration // hold after each random colour

	StoreWriteTimeout time.Duration
	StoreAddresses    nvstore.Addresses

	WatchdogTimeout time.Duration

	Banner protocol.Banner
}

// Default returns the reference timings.
func Default() Config {
	return Config{
		Device:            "pico",
		TickPeriod:        200 * time.Microsecond,
		RingCapacity:      20,
		Debounce:          50 * time.Millisecond,
		BlinkOn:           500 * time.Millisecond,
		BlinkOff:          500 * time.Millisecond,
		SaveBlinks:        3,
		UserBlinks:        2,
		ResetBlinks:       5,
		RandomHold:        time.Second,
		StoreWriteTimeout: 10 * time.Millisecond,
		StoreAddresses:    nvstore.DefaultAddresses,
		WatchdogTimeout:   2400 * time.Millisecond,
		Banner: protocol.Banner{
			Product: "# RGB LED",
			Version: "HW Ver 1.2 & SW Ver 1.4",
		},
	}
}

func invalid(msg string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "config.validate", Msg: msg}
}

// Validate rejects configurations the controller cannot run with.
func (c Config) Validate() error {
	switch {
	case c.TickPeriod <= 0:
		return invalid("tick period must be positive")
	case c.RingCapacity < 2 || c.RingCapacity > 256:
		return invalid("ring capacity must be in [2,256]")
	case c.Debounce < 0:
		return invalid("debounce must not be negative")
	case c.BlinkOn <= 0 || c.BlinkOff <= 0:
		return invalid("blink durations must be positive")
	case c.SaveBlinks < 1 || c.UserBlinks < 1 || c.ResetBlinks < 1:
		return invalid("blink counts must be at least 1")
	case c.RandomHold < 0:
		return invalid("random hold must not be negative")
	case c.StoreWriteTimeout <= 0:
		return invalid("store write timeout must be positive")
	case c.WatchdogTimeout != 0 && c.WatchdogTimeout <= c.blinkBudget():
		return invalid("watchdog timeout shorter than one blink")
	}
	a := c.StoreAddresses
	if a[0] == a[1] || a[0] == a[2] || a[1] == a[2] {
		return invalid("store addresses must be distinct")
	}
	return nil
}

// blinkBudget is the longest stretch without a watchdog kick during an
// acknowledgement.
func (c Config) blinkBudget() time.Duration { return c.BlinkOn + c.BlinkOff }

// Publish announces the configuration as a retained message on
// config/<device>.
func (c Config) Publish(conn *bus.Connection) {
	conn.Publish(conn.NewMessage(bus.T(configPrefix, c.Device), c, true))
}
