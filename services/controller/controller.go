// Package controller owns the light's shared state and runs it from two
// contexts: the tick interrupt (Interrupt, OnTick, OnByte) and the
// cooperative main loop (Boot, Step, Run).
//
// Interrupt-side entry points touch only the PWM engine and the serial
// receiver. Everything else belongs to the main loop.
package controller

import (
	"context"
	"io"

	"github.com/Jagichan/RGBMoodLight/bus"
	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/services/config"
	"github.com/Jagichan/RGBMoodLight/services/gesture"
	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/services/nvstore"
	"github.com/Jagichan/RGBMoodLight/services/protocol"
	"github.com/Jagichan/RGBMoodLight/services/pwm"
	"github.com/Jagichan/RGBMoodLight/services/random"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

// ByteSource is a receive buffer drained from interrupt context.
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// Hardware is the set of board services the controller runs on.
type Hardware struct {
	Channels  [types.NumChannels]hal.OutputPin
	ActiveLow bool // channel outputs
	Buttons   [types.NumChannels]gesture.Reader
	Mask      hal.Mask
	Watchdog  hal.Watchdog // optional
	Serial    io.Writer    // optional, receives the banner
	Store     nvstore.ByteStore
	// Clock serves every delay, including those taken with the tick masked.
	Clock timex.Clock
	Seed  func() int64 // optional, defaults to the PWM counter
	Halt  func()       // optional; on hardware it never returns
	Yield func()       // optional, called after every iteration
	Bus   *bus.Bus     // optional event sink
}

// Stats are main-loop counters.
type Stats struct {
	Iterations  uint32
	Lines       uint32
	Saves       uint32
	Erases      uint32
	Randoms     uint32
	StoreErrors uint32
	RxDropped   uint32
}

type Controller struct {
	cfg config.Config
	hw  Hardware

	pwm   *pwm.Engine
	rx    *protocol.Receiver
	deb   *gesture.Debouncer
	store *nvstore.ColorStore
	rng   *random.Generator
	conn  *bus.Connection

	user     bool
	modeSent bool
	state    gesture.State
	stats    Stats
}

// New validates cfg and wires the controller. Outputs are driven low
// (inactive) immediately.
func New(cfg config.Config, hw Hardware) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Mask == nil || hw.Store == nil || hw.Clock == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "controller.new", Msg: "mask, store and clock are required"}
	}
	for ch := range hw.Channels {
		if hw.Channels[ch] == nil || hw.Buttons[ch] == nil {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "controller.new", Msg: "missing pin for " + types.Channel(ch).String()}
		}
	}
	if hw.Watchdog == nil {
		hw.Watchdog = hal.NopWatchdog{}
	}
	c := &Controller{
		cfg:   cfg,
		hw:    hw,
		pwm:   pwm.New(hw.Channels, hw.ActiveLow, hw.Mask),
		rx:    protocol.NewReceiver(cfg.RingCapacity, hw.Mask),
		deb:   gesture.NewDebouncer(hw.Buttons, hw.Clock, cfg.Debounce),
		store: nvstore.NewColorStore(hw.Store, cfg.StoreAddresses),
	}
	if hw.Bus != nil {
		c.conn = hw.Bus.NewConnection("controller")
	}
	return c, nil
}

// ---- interrupt context ------------------------------------------------------

// OnTick advances the PWM engine by one tick.
func (c *Controller) OnTick() { c.pwm.Tick() }

// OnByte queues one received serial byte.
func (c *Controller) OnByte(b byte) { c.rx.Receive(b) }

// Interrupt is the coalesced handler: one PWM tick, then every byte src has
// buffered. src may be nil.
func (c *Controller) Interrupt(src ByteSource) {
	c.pwm.Tick()
	if src == nil {
		return
	}
	for src.Buffered() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			return
		}
		c.rx.Receive(b)
	}
}

// ---- main loop ------------------------------------------------------------

// Boot writes the banner, seeds the colour generator, starts the watchdog,
// runs the factory-reset check and restores a stored colour. It returns an
// errcode.Halted error when all buttons were held at power-on; the caller
// must then stop.
func (c *Controller) Boot() error {
	if c.hw.Serial != nil {
		if err := protocol.WriteBanner(c.hw.Serial, c.cfg.Banner); err != nil {
			println("[ctl] banner write failed:", err.Error())
		}
	}

	seed := int64(c.pwm.Counter())
	if c.hw.Seed != nil {
		seed = c.hw.Seed()
	}
	c.rng = random.New(seed)

	if c.cfg.WatchdogTimeout > 0 {
		if err := c.hw.Watchdog.Configure(c.cfg.WatchdogTimeout); err != nil {
			println("[ctl] watchdog configure failed:", err.Error())
		} else if err := c.hw.Watchdog.Start(); err != nil {
			println("[ctl] watchdog start failed:", err.Error())
		}
	}
	c.hw.Watchdog.Update()

	if hold := c.deb.CheckBootHold(); hold != gesture.HoldNone {
		return c.factoryReset(hold)
	}

	t, ok, err := c.store.Load()
	if err != nil {
		c.stats.StoreErrors++
		println("[ctl] store load failed:", err.Error())
		c.publishStore(types.StoreLoad, t, err)
		if errcode.Fatal(err) {
			return err
		}
	}
	c.pwm.SetColor(t)
	c.setUser(ok)
	if ok {
		println("[ctl] restored user colour")
		c.publishColor(t, types.SourceStore)
	}
	return nil
}

func (c *Controller) factoryReset(hold gesture.BootHold) error {
	var cause error
	if hold == gesture.HoldConfirmed {
		println("[ctl] factory reset: erasing stored colour")
		cause = c.store.Erase()
		c.stats.Erases++
		c.publishStore(types.StoreErase, types.Triple{}, cause)
		if cause == nil {
			c.acknowledge(types.AckReset, c.cfg.ResetBlinks)
		} else {
			c.stats.StoreErrors++
		}
	}
	return &errcode.E{C: errcode.Halted, Op: "controller.boot", Msg: "buttons held at power-on", Err: cause}
}

// Step runs one main-loop iteration. A non-nil error is fatal: the caller
// must stop iterating and let the watchdog reset the board.
func (c *Controller) Step() error {
	c.hw.Watchdog.Update()
	c.stats.Iterations++

	if cmd, ok := c.rx.Poll(); ok {
		c.hw.Watchdog.Update()
		c.stats.Lines++
		if err := c.apply(cmd); err != nil {
			return err
		}
	}

	r := gesture.Step(c.state, c.deb.Sample(), c.user)
	c.state = r.Next
	switch r.Action {
	case gesture.ActionSave:
		t := c.pwm.Color()
		if err := c.save(t); err != nil {
			return err
		}
		c.acknowledge(types.AckSave, c.cfg.SaveBlinks)
	case gesture.ActionEnterUser:
		c.setUser(true)
		c.acknowledge(types.AckUser, c.cfg.UserBlinks)
	}
	if r.Increment {
		c.pwm.Increment(r.Channel)
		c.publishColor(c.pwm.Color(), types.SourceButton)
	}

	if !c.user {
		t := c.rng.Next().Triple()
		c.pwm.SetColor(t)
		c.stats.Randoms++
		c.publishColor(t, types.SourceRandom)
		c.hw.Clock.Sleep(c.cfg.RandomHold)
	}
	return nil
}

func (c *Controller) apply(cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.KindClear:
		println("[ctl] clear: resuming random colours")
		c.setUser(false)
		err := c.store.Erase()
		c.stats.Erases++
		c.publishStore(types.StoreErase, types.Triple{}, err)
		return c.storeErr(err)
	default:
		c.setUser(true)
		t := cmd.Color.Triple()
		c.pwm.SetColor(t)
		c.publishColor(t, types.SourceSerial)
		return c.save(t)
	}
}

func (c *Controller) save(t types.Triple) error {
	err := c.store.Save(t)
	if err == nil {
		c.stats.Saves++
	}
	c.publishStore(types.StoreSave, t, err)
	return c.storeErr(err)
}

// storeErr logs a store failure and passes it on only when it is fatal.
func (c *Controller) storeErr(err error) error {
	if err == nil {
		return nil
	}
	c.stats.StoreErrors++
	println("[ctl] store write failed:", err.Error())
	if errcode.Fatal(err) {
		return err
	}
	return nil
}

// acknowledge blinks every channel n times with the tick masked, kicking the
// watchdog once per blink.
func (c *Controller) acknowledge(kind types.AckKind, n int) {
	c.publish(bus.T("mood", "ack"), types.AckEvent{Kind: kind, Blinks: n}, false)
	hal.Critical(c.hw.Mask, func() {
		for i := 0; i < n; i++ {
			c.pwm.Drive(true)
			c.hw.Clock.Sleep(c.cfg.BlinkOn)
			c.pwm.Drive(false)
			c.hw.Clock.Sleep(c.cfg.BlinkOff)
			c.hw.Watchdog.Update()
		}
	})
}

// Run boots and then iterates until ctx is cancelled or a fatal error occurs.
// On a fatal error the halt hook is called before returning.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Boot(); err != nil {
		c.fault(err)
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.Step(); err != nil {
			c.fault(err)
			return err
		}
		if c.hw.Yield != nil {
			c.hw.Yield()
		}
	}
}

func (c *Controller) fault(err error) {
	println("[ctl] halting:", err.Error())
	op := ""
	if e, ok := err.(*errcode.E); ok {
		op = e.Op
	}
	c.publish(bus.T("mood", "fault"), types.FaultEvent{Code: string(errcode.Of(err)), Op: op}, true)
	if c.hw.Halt != nil {
		c.hw.Halt()
	}
}

// ---- state accessors --------------------------------------------------------

// User reports whether a user colour is active.
func (c *Controller) User() bool { return c.user }

// Color returns the live duty triple.
func (c *Controller) Color() types.Triple { return c.pwm.Color() }

// State returns the gesture latch.
func (c *Controller) State() gesture.State { return c.state }

func (c *Controller) Stats() Stats {
	s := c.stats
	s.RxDropped = c.rx.Dropped()
	return s
}

func (c *Controller) setUser(on bool) {
	if c.user == on && c.modeSent {
		return
	}
	c.user, c.modeSent = on, true
	c.publish(bus.T("mood", "mode"), types.ModeEvent{User: on}, true)
}

// ---- events -----------------------------------------------------------------

func (c *Controller) publish(t bus.Topic, payload any, retained bool) {
	if c.conn == nil {
		return
	}
	c.conn.Publish(c.conn.NewMessage(t, payload, retained))
}

func (c *Controller) publishColor(t types.Triple, src types.Source) {
	c.publish(bus.T("mood", "color"), types.ColorEvent{Duty: t, Source: src}, false)
}

func (c *Controller) publishStore(op types.StoreOp, t types.Triple, err error) {
	ev := types.StoreEvent{Op: op, Duty: t}
	if err != nil {
		ev.Err = err.Error()
	}
	c.publish(bus.T("mood", "store"), ev, false)
}
