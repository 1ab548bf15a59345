package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Jagichan/RGBMoodLight/bus"
	"github.com/Jagichan/RGBMoodLight/errcode"
	"github.com/Jagichan/RGBMoodLight/services/config"
	"github.com/Jagichan/RGBMoodLight/services/controller"
	"github.com/Jagichan/RGBMoodLight/services/gesture"
	"github.com/Jagichan/RGBMoodLight/services/hal"
	"github.com/Jagichan/RGBMoodLight/services/hal/host"
	"github.com/Jagichan/RGBMoodLight/services/nvstore"
	"github.com/Jagichan/RGBMoodLight/types"
	"github.com/Jagichan/RGBMoodLight/x/timex"
)

const (
	eepromSize = 64
	at24Addr   = 0x50
)

// errReset reports that the simulated watchdog fired.
var errReset = errors.New("watchdog reset")

type simOptions struct {
	EEPROM string // image file; empty keeps the EEPROM in memory
	Store  string // "cells" or "at24"
	Hold   gesture.Buttons
	In     io.Reader
	Out    io.Writer
}

type sim struct {
	cfg    config.Config
	opts   simOptions
	logger *slog.Logger

	out  [types.NumChannels]*host.Pin
	btn  [types.NumChannels]*host.Pin
	mask *host.Mask
	wd   *host.Watchdog
	bus  *bus.Bus
	ctl  *controller.Controller
}

func newSim(cfg config.Config, opts simOptions, logger *slog.Logger) (*sim, error) {
	s := &sim{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		mask:   &host.Mask{},
		wd:     host.NewWatchdog(timex.System{}),
		bus:    bus.NewBus(32),
	}

	st, err := s.openStore()
	if err != nil {
		return nil, err
	}

	hw := controller.Hardware{
		Mask:     s.mask,
		Watchdog: s.wd,
		Serial:   opts.Out,
		Store:    st,
		Clock:    timex.System{},
		Seed:     func() int64 { return time.Now().UnixNano() },
		Halt:     s.halt,
		Bus:      s.bus,
	}
	for ch := range s.out {
		s.out[ch] = host.NewPin(false)
		s.btn[ch] = host.NewPin(!opts.Hold[ch]) // active-low
		hw.Channels[ch] = s.out[ch]
		hw.Buttons[ch] = hal.Button{Pin: s.btn[ch], ActiveLow: true}
	}

	s.ctl, err = controller.New(cfg, hw)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sim) openStore() (nvstore.ByteStore, error) {
	switch s.opts.Store {
	case "", "cells":
		var ee *host.EEPROM
		if s.opts.EEPROM == "" {
			ee = host.NewEEPROM(eepromSize)
		} else {
			var err error
			if ee, err = host.OpenEEPROM(s.opts.EEPROM, eepromSize); err != nil {
				return nil, err
			}
		}
		ee.Mask = s.mask
		return nvstore.NewCells(ee, eepromSize, s.mask, timex.System{}, s.cfg.StoreWriteTimeout), nil
	case "at24":
		dev := host.NewI2CEEPROM(at24Addr, eepromSize)
		return nvstore.NewAT24(dev, at24Addr, eepromSize, timex.System{}, s.cfg.StoreWriteTimeout), nil
	}
	return nil, &errcode.E{C: errcode.InvalidParams, Op: "moodsim.store", Msg: "unknown store " + s.opts.Store}
}

// halt stands in for the firmware's idle loop: it stops kicking the watchdog
// and waits for the reset.
func (s *sim) halt() {
	s.logger.Warn("controller halted, waiting for watchdog")
}

// Run starts the tick, the input reader, the event log and the controller,
// and returns when ctx is cancelled or the watchdog fires.
func (s *sim) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error { return s.tickLoop(ctx) })
	errg.Go(func() error { return s.watchdogLoop(ctx) })
	errg.Go(func() error { return s.eventLoop(ctx) })
	errg.Go(func() error {
		err := s.ctl.Run(ctx)
		if errcode.Fatal(err) {
			// Keep the other goroutines alive until the watchdog resets us.
			<-ctx.Done()
			return err
		}
		return err
	})
	if s.opts.In != nil {
		// The reader blocks in Read and is not joined.
		go s.inputLoop(ctx, s.opts.In)
	}

	err := errg.Wait()
	st := s.ctl.Stats()
	s.logger.Info("simulation stopped",
		"iterations", st.Iterations,
		"lines", st.Lines,
		"saves", st.Saves,
		"erases", st.Erases,
		"randoms", st.Randoms,
		"store_errors", st.StoreErrors,
		"rx_dropped", st.RxDropped)
	return err
}

func (s *sim) tickLoop(ctx context.Context) error {
	t := time.NewTicker(s.cfg.TickPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.mask.Do(s.ctl.OnTick)
		}
	}
}

func (s *sim) watchdogLoop(ctx context.Context) error {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if s.wd.Expired() {
				s.logger.Error("watchdog expired", "timeout", s.wd.Timeout())
				return errReset
			}
		}
	}
}

func (s *sim) eventLoop(ctx context.Context) error {
	conn := s.bus.NewConnection("moodsim")
	defer conn.Disconnect()
	sub := conn.Subscribe(bus.T("mood", "#"))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			logEvent(s.logger, msg)
		}
	}
}

func (s *sim) inputLoop(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := sc.Text()
		if strings.HasPrefix(line, "!") {
			b, err := parseButtons(line[1:])
			if err != nil {
				s.logger.Warn("bad button line", "line", line, "err", err)
				continue
			}
			s.press(b)
			continue
		}
		s.send(line + "\n")
	}
}

// send delivers bytes through the interrupt path one at a time.
func (s *sim) send(line string) {
	for i := 0; i < len(line); i++ {
		b := line[i]
		s.mask.Do(func() { s.ctl.OnByte(b) })
	}
}

func (s *sim) press(b gesture.Buttons) {
	for ch := range s.btn {
		s.btn[ch].Set(!b[ch])
	}
	s.logger.Info("buttons", "red", b[types.Red], "green", b[types.Green], "blue", b[types.Blue])
}

// parseButtons reads a set of channel letters such as "rg".
func parseButtons(s string) (gesture.Buttons, error) {
	var b gesture.Buttons
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch c {
		case 'r':
			b[types.Red] = true
		case 'g':
			b[types.Green] = true
		case 'b':
			b[types.Blue] = true
		default:
			return b, errors.Errorf("unknown button %q", c)
		}
	}
	return b, nil
}

func logEvent(logger *slog.Logger, msg *bus.Message) {
	switch ev := msg.Payload.(type) {
	case types.ColorEvent:
		logger.Debug("color", "source", ev.Source, "r", ev.Duty[types.Red], "g", ev.Duty[types.Green], "b", ev.Duty[types.Blue])
	case types.ModeEvent:
		mode := "random"
		if ev.User {
			mode = "user"
		}
		logger.Info("mode", "mode", mode)
	case types.StoreEvent:
		if ev.Err != "" {
			logger.Error("store", "op", ev.Op, "err", ev.Err)
			return
		}
		logger.Info("store", "op", ev.Op, "r", ev.Duty[types.Red], "g", ev.Duty[types.Green], "b", ev.Duty[types.Blue])
	case types.AckEvent:
		logger.Info("ack", "kind", ev.Kind, "blinks", ev.Blinks)
	case types.FaultEvent:
		logger.Error("fault", "code", ev.Code, "op", ev.Op)
	}
}
