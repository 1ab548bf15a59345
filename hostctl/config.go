// Package hostctl talks to the mood light over its serial line from a host
// computer: sending colour and clear commands, echoing device output and
// running cron-scheduled colour changes.
package hostctl

import (
	"encoding"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config is the client configuration, normally read from moodctl.toml.
type Config struct {
	// Device is the serial port path, e.g. /dev/ttyACM0.
	Device string `toml:"device"`
	// Baud must match the firmware (9600).
	Baud int `toml:"baud"`
	// Rate is the maximum number of command lines per second.
	Rate float64 `toml:"rate"`
	// Burst is the number of lines that may be sent back to back.
	Burst int `toml:"burst"`
	// Settle is how long to wait after opening the port before writing.
	Settle TOMLDuration `toml:"settle"`

	Schedule []ScheduleEntry `toml:"schedule"`
}

// ScheduleEntry maps a cron spec to an action: "clear" or an RRGGBB colour.
type ScheduleEntry struct {
	Spec   string `toml:"spec"`
	Action string `toml:"action"`
}

// DefaultConfig returns a configuration for a Pico on its first USB serial
// port.
func DefaultConfig() *Config {
	return &Config{
		Device: "/dev/ttyACM0",
		Baud:   9600,
		Rate:   2,
		Burst:  1,
		Settle: TOMLDuration(100 * time.Millisecond),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("missing device")
	}
	if c.Baud <= 0 {
		return errors.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.Rate <= 0 || c.Burst < 1 {
		return errors.New("rate must be positive and burst at least 1")
	}
	for i, e := range c.Schedule {
		if _, err := parseAction(e.Action); err != nil {
			return errors.Wrapf(err, "schedule %d", i)
		}
	}
	return nil
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig reads a configuration on top of DefaultConfig.
func ParseConfig(r io.Reader) (*Config, error) {
	config := DefaultConfig()
	if err := toml.NewDecoder(r).Decode(config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return config, nil
}
