// Command moodsim runs the mood light controller on a host computer.
//
// Standard input stands in for the serial line: every line that does not
// start with '!' is sent to the device as-is. Button lines select which
// buttons are held:
//
//	!r    hold red
//	!rg   hold red and green (save gesture)
//	!     release all
//
// The simulated EEPROM is kept in a file so stored colours survive restarts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/Jagichan/RGBMoodLight/services/config"
)

var (
	eepromPath = "moodsim.eeprom"
	store      = "cells"
	hold       = ""
	tick       = time.Millisecond
	verbose    = false
)

func init() {
	pflag.StringVarP(&eepromPath, "eeprom", "e", eepromPath, "EEPROM image file, empty for an in-memory device")
	pflag.StringVarP(&store, "store", "s", store, "store backend: cells (on-chip style) or at24 (I2C)")
	pflag.StringVar(&hold, "hold", hold, "buttons held at power-on, e.g. rgb for a factory reset")
	pflag.DurationVarP(&tick, "tick", "t", tick, "PWM tick period")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "log every colour change")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	cfg.Device = "moodsim"
	cfg.TickPeriod = tick
	cfg.Banner.Build = "Build " + time.Now().Format("Jan 02 2006 15:04:05")

	held, err := parseButtons(hold)
	if err != nil {
		return fmt.Errorf("invalid --hold: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sim, err := newSim(cfg, simOptions{
		EEPROM: eepromPath,
		Store:  store,
		Hold:   held,
		In:     os.Stdin,
		Out:    os.Stdout,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to set up simulator: %w", err)
	}

	if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
