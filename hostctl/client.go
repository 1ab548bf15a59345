package hostctl

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/conv"
)

// Sender is what the scheduler needs from a client.
type Sender interface {
	SetColor(ctx context.Context, c types.Color) error
	Clear(ctx context.Context) error
}

// Client writes command lines to the device and reads its output.
type Client struct {
	port    io.ReadWriteCloser
	limiter *rate.Limiter
	logger  *slog.Logger

	mu sync.Mutex // serialises writes
}

var _ Sender = (*Client)(nil)

// NewClient wraps an open port.
func NewClient(port io.ReadWriteCloser, cfg *Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		port:    port,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:  logger,
	}
}

// Open opens the configured serial port.
func Open(cfg *Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to set read timeout")
	}
	time.Sleep(time.Duration(cfg.Settle))
	return NewClient(port, cfg, logger), nil
}

// Close closes the port.
func (c *Client) Close() error { return c.port.Close() }

// SetColor selects and persists a user colour.
func (c *Client) SetColor(ctx context.Context, col types.Color) error {
	return c.send(ctx, col.Hex())
}

// Clear erases the stored colour; the device resumes random colours.
func (c *Client) Clear(ctx context.Context) error {
	return c.send(ctx, "X")
}

// send writes one LF-terminated line. A CRLF pair would reach the device as a
// second, empty line, which it takes as black.
func (c *Client) send(ctx context.Context, line string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("sending line", "line", line)
	if _, err := io.WriteString(c.port, line+"\n"); err != nil {
		return errors.Wrap(err, "failed to write line")
	}
	return nil
}

// Monitor calls fn for every line the device prints until the port is closed.
func (c *Client) Monitor(fn func(line string)) error {
	sc := bufio.NewScanner(c.port)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		fn(line)
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "failed to read device output")
	}
	return nil
}

// Run monitors device output until ctx is cancelled, then closes the port.
func (c *Client) Run(ctx context.Context, fn func(line string)) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		c.logger.Debug("closing serial port")
		if err := c.port.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		if err := c.Monitor(fn); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
	return errg.Wait()
}

// ParseColor accepts RRGGBB with an optional leading '#'. Unlike the device,
// it rejects anything that is not exactly six hex digits.
func ParseColor(s string) (types.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, errors.Errorf("colour %q: want six hex digits", s)
	}
	for i := 0; i < len(s); i++ {
		if _, ok := conv.HexNibble(s[i]); !ok {
			return 0, errors.Errorf("colour %q: %q is not a hex digit", s, s[i])
		}
	}
	return types.Color(conv.AccumulateHex([]byte(s))), nil
}

// action is a parsed schedule action.
type action struct {
	clear bool
	color types.Color
}

func parseAction(s string) (action, error) {
	if strings.EqualFold(strings.TrimSpace(s), "clear") {
		return action{clear: true}, nil
	}
	c, err := ParseColor(s)
	if err != nil {
		return action{}, err
	}
	return action{color: c}, nil
}

func (a action) apply(ctx context.Context, s Sender) error {
	if a.clear {
		return s.Clear(ctx)
	}
	return s.SetColor(ctx, a.color)
}
