package timex

import (
	"sync"
	"time"

	"github.com/Jagichan/RGBMoodLight/errcode"
)

// Clock is the time source used by blocking firmware paths.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// System defers to the runtime scheduler.
type System struct{}

func (System) Now() time.Time        { return time.Now() }
func (System) Sleep(d time.Duration) { time.Sleep(d) }

// Busy spins on the monotonic clock instead of yielding. It keeps working
// while interrupts are masked, where a scheduler sleep would never wake.
type Busy struct{}

func (Busy) Now() time.Time { return time.Now() }

func (Busy) Sleep(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}

// Fake is a manually driven clock. Sleep advances it immediately.
// If Step is non-zero every call to Now also advances it by Step, which lets
// a polling loop make progress without a real sleep.
type Fake struct {
	mu    sync.Mutex
	t     time.Time
	Step  time.Duration
	slept time.Duration
}

func NewFake(start time.Time) *Fake { return &Fake{t: start} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.t
	f.t = f.t.Add(f.Step)
	return now
}

func (f *Fake) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.slept += d
	f.mu.Unlock()
}

// Advance moves the clock forward without counting it as sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// Slept returns the total duration passed to Sleep.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slept
}

// WaitFor polls cond every poll until it returns true or timeout elapses.
// cond is always evaluated at least once. On expiry it returns
// errcode.Timeout.
func WaitFor(clk Clock, timeout, poll time.Duration, cond func() bool) error {
	deadline := clk.Now().Add(timeout)
	for {
		if cond() {
			return nil
		}
		if !clk.Now().Before(deadline) {
			return errcode.Timeout
		}
		if poll > 0 {
			clk.Sleep(poll)
		}
	}
}
