//go:build rp2040

// Firmware entry point for the Raspberry Pi Pico.
//
//	tinygo flash -target=pico -ldflags "-X 'main.buildStamp=$(date '+%b %d %Y %H:%M:%S')'" ./cmd/pico-moodlight
package main

import (
	"context"
	"runtime"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/Jagichan/RGBMoodLight/bus"
	"github.com/Jagichan/RGBMoodLight/services/config"
	"github.com/Jagichan/RGBMoodLight/services/controller"
	"github.com/Jagichan/RGBMoodLight/services/hal/rp2"
	"github.com/Jagichan/RGBMoodLight/services/heartbeat"
)

var buildStamp = "unknown"

func main() {
	// Give the USB console a moment to enumerate.
	time.Sleep(500 * time.Millisecond)
	ctx := context.Background()

	cfg := config.Default()
	cfg.Banner.Build = "Build " + buildStamp

	board, err := rp2.NewBoard(cfg.StoreWriteTimeout)
	if err != nil {
		println("[main] board setup failed:", err.Error())
		rp2.Halt()
	}

	b := bus.NewBus(8)
	hb := &heartbeat.Service{Interval: 10 * time.Second}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	cfg.Publish(b.NewConnection("config"))

	hw := controller.Hardware{
		Channels: board.Channels,
		Mask:     board.Mask,
		Watchdog: board.Watchdog,
		Serial:   board.Serial,
		Store:    board.Store,
		Clock:    board.Clock,
		Seed:     rp2.Seed,
		Halt:     rp2.Halt,
		Yield:    runtime.Gosched,
		Bus:      b,
	}
	for ch, btn := range board.Buttons {
		hw.Buttons[ch] = btn
	}

	c, err := controller.New(cfg, hw)
	if err != nil {
		println("[main] controller setup failed:", err.Error())
		rp2.Halt()
	}

	println("[main] starting tick at", int(cfg.TickPeriod/time.Microsecond), "us")
	rp2.StartTicker(cfg.TickPeriod, func() { c.Interrupt(uartx.UART0) })

	_ = c.Run(ctx)
	rp2.Halt()
}
