package pwm

import (
	"testing"

	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/services/hal/host"
	"github.com/Jagichan/RGBMoodLight/types"
)

func newEngine(activeLow bool) (*Engine, [3]*host.Pin, *host.Mask) {
	p := [3]*host.Pin{host.NewPin(false), host.NewPin(false), host.NewPin(false)}
	m := &host.Mask{}
	e := New([3]hal.OutputPin{p[0], p[1], p[2]}, activeLow, m)
	return e, p, m
}

func TestPeriodProducesDutyHighTicks(t *testing.T) {
	for d := 0; d <= types.MaxDuty; d++ {
		e, p, _ := newEngine(false)
		e.SetChannel(types.Red, types.Duty(d))
		for tick := 0; tick < types.MaxDuty; tick++ {
			e.Tick()
			want := tick < d
			if got := p[types.Red].Get(); got != want {
				t.Fatalf("duty %d tick %d: level %v want %v", d, tick, got, want)
			}
		}
		if e.Counter() != 0 {
			t.Fatalf("duty %d: counter %d after a full period", d, e.Counter())
		}
	}
}

func TestPinsWrittenOnlyOnChange(t *testing.T) {
	e, p, _ := newEngine(false)
	e.SetColor(types.Triple{100, 0, 30})
	base := [3]int{p[0].Writes(), p[1].Writes(), p[2].Writes()}
	for i := 0; i < 3*types.MaxDuty; i++ {
		e.Tick()
	}
	if n := p[0].Writes() - base[0]; n != 1 {
		t.Fatalf("always-on channel written %d times", n)
	}
	if n := p[1].Writes() - base[1]; n != 0 {
		t.Fatalf("off channel written %d times", n)
	}
	if n := p[2].Writes() - base[2]; n != 6 {
		t.Fatalf("30%% channel written %d times over 3 periods, want 6", n)
	}
}

func TestActiveLowInverts(t *testing.T) {
	e, p, _ := newEngine(true)
	if !p[0].Get() {
		t.Fatal("active-low outputs must idle high")
	}
	e.SetChannel(types.Red, 100)
	e.Tick()
	if p[0].Get() {
		t.Fatal("active-low channel on must drive low")
	}
}

func TestSetColorMasksAndClamps(t *testing.T) {
	e, _, m := newEngine(false)
	e.SetColor(types.Triple{120, 50, 0})
	if m.Disables() != 1 {
		t.Fatalf("SetColor masked %d times", m.Disables())
	}
	if got := e.Color(); got != (types.Triple{100, 50, 0}) {
		t.Fatalf("Color=%v", got)
	}
}

func TestIncrementWrapsAfterFull(t *testing.T) {
	e, _, _ := newEngine(false)
	e.SetChannel(types.Blue, 99)
	if d := e.Increment(types.Blue); d != 100 {
		t.Fatalf("99+1=%d", d)
	}
	if d := e.Increment(types.Blue); d != 0 {
		t.Fatalf("100+1 must wrap to 0, got %d", d)
	}
	if d := e.Increment(types.Blue); d != 1 {
		t.Fatalf("0+1=%d", d)
	}
}

func TestDriveThenTickRestores(t *testing.T) {
	e, p, m := newEngine(false)
	e.SetColor(types.Triple{0, 100, 0})
	e.Tick()

	s := m.Disable()
	e.Drive(true)
	if !p[0].Get() || !p[1].Get() || !p[2].Get() {
		t.Fatal("Drive(true) must light every channel")
	}
	e.Drive(false)
	m.Restore(s)

	e.Tick()
	if p[0].Get() || !p[1].Get() || p[2].Get() {
		t.Fatal("first tick after Drive must restore duty levels")
	}
}
