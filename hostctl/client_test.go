package hostctl

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jagichan/RGBMoodLight/types"
)

type fakePort struct {
	mu      sync.Mutex
	written bytes.Buffer

	r *io.PipeReader
	w *io.PipeWriter
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, w: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.w.Close()
	return p.r.Close()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.Rate = 1000
	cfg.Burst = 10
	return cfg
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, types.RGB(0xFF, 0x80, 0x00), c)

	c, err = ParseColor(" 0A0B0C ")
	require.NoError(t, err)
	assert.Equal(t, types.RGB(0x0A, 0x0B, 0x0C), c)

	for _, bad := range []string{"", "FFF", "FF80001", "GG0000", "X"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestSendWritesLFTerminatedLines(t *testing.T) {
	port := newFakePort()
	c := NewClient(port, fastConfig(), nil)
	ctx := context.Background()

	require.NoError(t, c.SetColor(ctx, types.RGB(0xFF, 0x80, 0x00)))
	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, "FF8000\nX\n", port.Written())
}

func TestSendHonoursCancelledContext(t *testing.T) {
	port := newFakePort()
	cfg := fastConfig()
	cfg.Rate = 0.001
	cfg.Burst = 1
	c := NewClient(port, cfg, nil)

	require.NoError(t, c.Clear(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, c.Clear(ctx))
	assert.Equal(t, "X\n", port.Written())
}

func TestMonitorSplitsDeviceLines(t *testing.T) {
	port := newFakePort()
	c := NewClient(port, fastConfig(), nil)

	go func() {
		io.WriteString(port.w, "# RGB LED\r\nHW Ver 1.2 & SW Ver 1.4\r\n\r\n")
		port.w.Close()
	}()

	var lines []string
	require.NoError(t, c.Monitor(func(l string) { lines = append(lines, l) }))
	assert.Equal(t, []string{"# RGB LED", "HW Ver 1.2 & SW Ver 1.4"}, lines)
}

func TestRunClosesPortOnCancel(t *testing.T) {
	port := newFakePort()
	c := NewClient(port, fastConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(string) {}) }()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestParseConfig(t *testing.T) {
	const doc = `
device = "/dev/ttyUSB1"
baud = 9600
rate = 5.0
burst = 2
settle = "250ms"

[[schedule]]
spec = "0 7 * * *"
action = "FFA040"

[[schedule]]
spec = "0 23 * * *"
action = "clear"
`
	cfg, err := ParseConfig(strings.NewReader(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/ttyUSB1", cfg.Device)
	assert.Equal(t, 5.0, cfg.Rate)
	assert.Equal(t, 2, cfg.Burst)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.Settle))
	require.Len(t, cfg.Schedule, 2)
	assert.Equal(t, "clear", cfg.Schedule[1].Action)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`device = "/dev/ttyACM1"`))
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, DefaultConfig().Settle, cfg.Settle)
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Schedule = []ScheduleEntry{{Spec: "@hourly", Action: "purple"}}
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Device = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Burst = 0
	require.Error(t, cfg.Validate())
}
