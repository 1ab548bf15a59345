package controller

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Jagichan/RGBMoodLight/bus"
	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/services/config"
	"github.com/Jagichan/RGBMoodLight/services/gesture"
	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/services/hal/host"
	"github.com/Jagichan/RGBMoodLight/services/nvstore"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

type rig struct {
	c      *Controller
	out    [3]*host.Pin
	btn    [3]*host.Pin
	mask   *host.Mask
	ee     *host.EEPROM
	clk    *timex.Fake
	wd     *host.Watchdog
	serial *bytes.Buffer
	bus    *bus.Bus
	halted int
}

func newRig(t *testing.T, ee *host.EEPROM, hold ...types.Channel) *rig {
	t.Helper()
	r := &rig{
		mask:   &host.Mask{},
		clk:    timex.NewFake(time.Unix(0, 0)),
		serial: &bytes.Buffer{},
		bus:    bus.NewBus(64),
	}
	if ee == nil {
		ee = host.NewEEPROM(16)
	}
	ee.Mask = r.mask
	r.ee = ee
	r.wd = host.NewWatchdog(r.clk)

	var hw Hardware
	for ch := range r.out {
		r.out[ch] = host.NewPin(false)
		r.btn[ch] = host.NewPin(true) // released, active-low
		hw.Channels[ch] = r.out[ch]
		hw.Buttons[ch] = hal.Button{Pin: r.btn[ch], ActiveLow: true}
	}
	for _, ch := range hold {
		r.btn[ch].Set(false)
	}
	hw.Mask = r.mask
	hw.Watchdog = r.wd
	hw.Serial = r.serial
	hw.Clock = r.clk
	hw.Store = nvstore.NewCells(ee, ee.Size(), r.mask, r.clk, 10*time.Millisecond)
	hw.Seed = func() int64 { return 1 }
	hw.Halt = func() { r.halted++ }
	hw.Bus = r.bus

	c, err := New(config.Default(), hw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.c = c
	return r
}

func (r *rig) send(s string) {
	for i := 0; i < len(s); i++ {
		r.c.OnByte(s[i])
	}
}

func (r *rig) press(chs ...types.Channel) {
	for ch := range r.btn {
		r.btn[ch].Set(true)
	}
	for _, ch := range chs {
		r.btn[ch].Set(false)
	}
}

func (r *rig) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := r.c.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
}

func TestBootWritesBannerAndStartsWatchdog(t *testing.T) {
	r := newRig(t, nil)
	if err := r.c.Boot(); err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if got := r.serial.String(); got != "# RGB LED\r\nHW Ver 1.2 & SW Ver 1.4\r\n" {
		t.Fatalf("banner %q", got)
	}
	if !r.wd.Started() || r.wd.Timeout() != 2400*time.Millisecond {
		t.Fatal("watchdog not configured")
	}
	if r.c.User() {
		t.Fatal("fresh store must boot in random mode")
	}
}

func TestSerialColourRoundTripAndRehydrate(t *testing.T) {
	r := newRig(t, nil)
	if err := r.c.Boot(); err != nil {
		t.Fatal(err)
	}
	r.send("FF8000\n")
	r.step(t, 1)

	want := types.Triple{100, types.ScaleChannel(0x80), 0}
	if got := r.c.Color(); got != want {
		t.Fatalf("Color=%v want %v", got, want)
	}
	if !r.c.User() {
		t.Fatal("user flag not set")
	}
	if b := r.ee.Bytes(); b[0] != 100 || b[1] != 50 || b[2] != 0 {
		t.Fatalf("store=%v", b[:3])
	}
	if r.ee.Violations() != 0 {
		t.Fatalf("write discipline violations: %d", r.ee.Violations())
	}

	// Power cycle onto the same memory.
	again := newRig(t, r.ee)
	if err := again.c.Boot(); err != nil {
		t.Fatal(err)
	}
	if again.c.Color() != want || !again.c.User() {
		t.Fatalf("rehydrated %v user=%v", again.c.Color(), again.c.User())
	}
	// User mode: no random colour overwrites it.
	again.step(t, 3)
	if again.c.Color() != want || again.c.Stats().Randoms != 0 {
		t.Fatal("user colour overwritten")
	}
}

func TestClearErasesAndResumesRandom(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.send("123456\r")
	r.step(t, 1)

	r.send("x\n")
	r.step(t, 1)
	if r.c.User() {
		t.Fatal("clear must leave user mode")
	}
	if b := r.ee.Bytes(); b[0] != 0 || b[1] != 0 || b[2] != 0 {
		t.Fatalf("store not erased: %v", b[:3])
	}
	before := r.c.Stats().Randoms
	r.step(t, 2)
	if got := r.c.Stats().Randoms - before; got != 2 {
		t.Fatalf("random colours after clear=%d want 2", got)
	}
}

func TestRandomModeHoldsBetweenColours(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	start := r.clk.Slept()
	r.step(t, 1)
	// one debounce delay plus the random hold
	if d := r.clk.Slept() - start; d != 50*time.Millisecond+time.Second {
		t.Fatalf("iteration slept %v", d)
	}
	c := r.c.Color()
	for ch := range c {
		if c[ch] > types.MaxDuty {
			t.Fatalf("duty out of range: %v", c)
		}
	}
}

func TestComboWithoutUserColourDoesNotSave(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.press(types.Red, types.Green)
	r.step(t, 3)
	if r.c.User() || r.ee.Commits() != 0 {
		t.Fatalf("combo acted without user colour: user=%v commits=%d", r.c.User(), r.ee.Commits())
	}
}

func TestComboSavesOncePerHold(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.send("0A0B0C\n")
	r.step(t, 1)
	base := r.c.Stats().Saves

	acks := r.bus.NewConnection("t").Subscribe(bus.T("mood", "ack"))
	r.press(types.Red, types.Green)
	r.step(t, 5)
	if got := r.c.Stats().Saves - base; got != 1 {
		t.Fatalf("saves while held=%d want 1", got)
	}
	if r.c.State() != gesture.ComboHeld {
		t.Fatalf("state=%v", r.c.State())
	}
	select {
	case m := <-acks.Channel():
		if ev := m.Payload.(types.AckEvent); ev.Kind != types.AckSave || ev.Blinks != 3 {
			t.Fatalf("ack=%+v", ev)
		}
	default:
		t.Fatal("no save acknowledgement")
	}

	r.press()
	r.step(t, 1)
	r.press(types.Red, types.Green)
	r.step(t, 1)
	if got := r.c.Stats().Saves - base; got != 2 {
		t.Fatalf("saves after release and re-press=%d want 2", got)
	}
}

func TestSingleButtonEntersUserModeAndAdjusts(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.step(t, 1) // one random colour
	shown := r.c.Color()

	r.press(types.Blue)
	r.step(t, 1)
	if !r.c.User() {
		t.Fatal("single press must enter user mode")
	}
	want := shown
	want[types.Blue]++
	if want[types.Blue] > types.MaxDuty {
		want[types.Blue] = 0
	}
	if got := r.c.Color(); got != want {
		t.Fatalf("Color=%v want %v", got, want)
	}
	if r.ee.Commits() != 0 {
		t.Fatal("manual adjustment must not be saved")
	}
	// Held: keeps incrementing, no second acknowledgement.
	r.step(t, 2)
	if r.c.State() != gesture.SingleHeld {
		t.Fatalf("state=%v", r.c.State())
	}
}

func TestHeldPairAdjustsFirstButton(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.send("323232\n")
	r.step(t, 1)
	if got := r.c.Color(); got != (types.Triple{19, 19, 19}) {
		t.Fatalf("Color=%v", got)
	}

	r.press(types.Red, types.Blue)
	r.step(t, 3)
	if got := r.c.Color(); got != (types.Triple{22, 19, 19}) {
		t.Fatalf("after red+blue Color=%v want [22 19 19]", got)
	}

	r.press()
	r.step(t, 1)
	r.press(types.Red, types.Green)
	r.step(t, 3)
	if got := r.c.Color(); got != (types.Triple{25, 19, 19}) {
		t.Fatalf("after red+green Color=%v want [25 19 19]", got)
	}
	// The save runs before that iteration's increment.
	if b := r.ee.Bytes(); b[0] != 22 || b[1] != 19 || b[2] != 19 {
		t.Fatalf("stored %v want [22 19 19]", b[:3])
	}
}

func TestAcknowledgeMasksAndKicks(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	kicks := r.wd.Kicks()
	disables := r.mask.Disables()
	r.press(types.Red)
	r.step(t, 1)
	// Step kick + two blinks; the random colour is skipped in user mode.
	if got := r.wd.Kicks() - kicks; got != 3 {
		t.Fatalf("kicks=%d want 3", got)
	}
	if r.mask.Disables()-disables != 1 {
		t.Fatal("blink sequence must run in one masked section")
	}
	for ch, p := range r.out {
		if p.Get() {
			t.Fatalf("channel %d left on after blinks", ch)
		}
	}
}

func TestFactoryResetErasesAndHalts(t *testing.T) {
	ee := host.NewEEPROM(16)
	ee.Poke(0, 40)
	ee.Poke(1, 40)
	r := newRig(t, ee, types.Red, types.Green, types.Blue)
	faults := r.bus.NewConnection("t").Subscribe(bus.T("mood", "fault"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := r.c.Run(ctx)
	if errcode.Of(err) != errcode.Halted {
		t.Fatalf("Run err=%v want halted", err)
	}
	if b := ee.Bytes(); b[0] != 0 || b[1] != 0 || b[2] != 0 {
		t.Fatalf("store not erased: %v", b[:3])
	}
	if r.halted != 1 {
		t.Fatalf("halt hook called %d times", r.halted)
	}
	if r.c.Stats().Iterations != 0 {
		t.Fatal("main loop must never run after a factory reset")
	}
	select {
	case m := <-faults.Channel():
		if m.Payload.(types.FaultEvent).Code != string(errcode.Halted) {
			t.Fatalf("fault=%+v", m.Payload)
		}
	default:
		t.Fatal("no fault event")
	}
}

func TestStoreTimeoutIsFatal(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.ee.Stuck = true
	r.send("FFFFFF\n")
	err := r.c.Step()
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("Step err=%v want timeout", err)
	}
	if r.mask.Held() {
		t.Fatal("mask held after failed write")
	}
	if r.c.Stats().StoreErrors != 1 {
		t.Fatalf("StoreErrors=%d", r.c.Stats().StoreErrors)
	}
}

type fifo struct{ b []byte }

func (f *fifo) Buffered() int { return len(f.b) }
func (f *fifo) ReadByte() (byte, error) {
	if len(f.b) == 0 {
		return 0, errcode.BufferEmpty
	}
	c := f.b[0]
	f.b = f.b[1:]
	return c, nil
}

func TestInterruptTicksAndDrains(t *testing.T) {
	r := newRig(t, nil)
	_ = r.c.Boot()
	r.c.Interrupt(&fifo{b: []byte("00FF00\n")})
	r.step(t, 1)
	if r.c.Color() != (types.Triple{0, 100, 0}) {
		t.Fatalf("Color=%v", r.c.Color())
	}
	for i := 0; i < types.MaxDuty; i++ {
		r.c.Interrupt(nil)
	}
	if r.out[types.Red].Get() || !r.out[types.Green].Get() {
		t.Fatal("outputs do not follow duties")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.c.Run(ctx); err != context.Canceled {
		t.Fatalf("Run err=%v", err)
	}
	if r.halted != 0 {
		t.Fatal("cancel must not halt")
	}
}
