// Package host provides simulated board services for the host simulator and
// for tests: pins, an interrupt mask, a watchdog and two EEPROM models.
package host

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jagichan/RGBMoodLight/x/timex"
)

// ----------------------------- GPIO ------------------------------------------

// Pin is a simulated line usable as input or output.
type Pin struct {
	mu     sync.RWMutex
	level  bool
	writes int
	onSet  func(bool)
}

// NewPin returns a pin at the given initial level.
func NewPin(level bool) *Pin { return &Pin{level: level} }

func (p *Pin) Set(level bool) {
	p.mu.Lock()
	changed := p.level != level
	p.level = level
	p.writes++
	cb := p.onSet
	p.mu.Unlock()
	if changed && cb != nil {
		cb(level)
	}
}

func (p *Pin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// Writes counts calls to Set.
func (p *Pin) Writes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writes
}

// OnChange registers a callback run after every level change.
func (p *Pin) OnChange(fn func(level bool)) {
	p.mu.Lock()
	p.onSet = fn
	p.mu.Unlock()
}

// ----------------------------- Interrupt mask --------------------------------

// Mask serialises a simulated interrupt context with the main loop.
// Disable and Restore belong to the main loop; interrupt goroutines enter
// through Do, which blocks while the main loop holds the mask.
type Mask struct {
	mu       sync.Mutex
	held     atomic.Bool
	disables atomic.Uint32
}

func (m *Mask) Disable() uintptr {
	if m.held.Load() {
		return 0
	}
	m.mu.Lock()
	m.held.Store(true)
	m.disables.Add(1)
	return 1
}

func (m *Mask) Restore(state uintptr) {
	if state == 0 {
		return
	}
	m.held.Store(false)
	m.mu.Unlock()
}

// Do runs an interrupt handler body.
func (m *Mask) Do(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Held reports whether the main loop currently masks interrupts.
func (m *Mask) Held() bool { return m.held.Load() }

// Disables counts outermost Disable calls.
func (m *Mask) Disables() uint32 { return m.disables.Load() }

// ----------------------------- Watchdog --------------------------------------

// Watchdog records configuration and kicks. Expired reports whether the
// timeout has passed since the last kick according to its clock.
type Watchdog struct {
	mu      sync.Mutex
	clk     timex.Clock
	timeout time.Duration
	started bool
	kicks   int
	last    time.Time
}

func NewWatchdog(clk timex.Clock) *Watchdog { return &Watchdog{clk: clk} }

func (w *Watchdog) Configure(timeout time.Duration) error {
	w.mu.Lock()
	w.timeout = timeout
	w.mu.Unlock()
	return nil
}

func (w *Watchdog) Start() error {
	w.mu.Lock()
	w.started = true
	w.last = w.clk.Now()
	w.mu.Unlock()
	return nil
}

func (w *Watchdog) Update() {
	w.mu.Lock()
	w.kicks++
	w.last = w.clk.Now()
	w.mu.Unlock()
}

func (w *Watchdog) Kicks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kicks
}

func (w *Watchdog) Started() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *Watchdog) Timeout() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timeout
}

func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started && w.clk.Now().Sub(w.last) > w.timeout
}
