//go:build rp2040

package rp2

import (
	"device/rp"
	"runtime/interrupt"
	"time"
)

// Mask disables every interrupt on the core.
type Mask struct{}

func (Mask) Disable() uintptr      { return uintptr(interrupt.Disable()) }
func (Mask) Restore(state uintptr) { interrupt.Restore(interrupt.State(state)) }

var (
	tickFn       func()
	tickPeriodUs uint32
)

// StartTicker calls fn from the TIMER alarm 1 interrupt every period.
// Alarm 0 belongs to the runtime's sleep timer.
func StartTicker(period time.Duration, fn func()) {
	tickFn = fn
	tickPeriodUs = uint32(period / time.Microsecond)
	if tickPeriodUs == 0 {
		tickPeriodUs = 1
	}
	intr := interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm)
	rp.TIMER.INTE.SetBits(rp.TIMER_INTE_ALARM_1)
	rp.TIMER.ALARM1.Set(rp.TIMER.TIMERAWL.Get() + tickPeriodUs)
	intr.Enable()
}

func handleAlarm(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(rp.TIMER_INTR_ALARM_1)
	// Re-arm from the previous deadline so the period does not drift.
	rp.TIMER.ALARM1.Set(rp.TIMER.ALARM1.Get() + tickPeriodUs)
	if tickFn != nil {
		tickFn()
	}
}

// Seed returns the free-running microsecond counter.
func Seed() int64 { return int64(rp.TIMER.TIMERAWL.Get()) }
