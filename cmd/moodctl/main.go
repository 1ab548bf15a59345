// Command moodctl drives the mood light over its serial line.
//
//	moodctl set FF8000     select and persist a colour
//	moodctl clear          erase the stored colour
//	moodctl monitor        print device output
//	moodctl schedule       run the [[schedule]] entries from the config
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Jagichan/RGBMoodLight/hostctl"
)

var (
	config  = "moodctl.toml"
	device  = ""
	baud    = 0
	verbose = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.StringVarP(&device, "device", "d", device, "serial device, overrides the config")
	pflag.IntVarP(&baud, "baud", "b", baud, "baud rate, overrides the config")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] set RRGGBB | clear | monitor | schedule\n", os.Args[0])
		pflag.PrintDefaults()
	}
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

	if err := run(pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		pflag.Usage()
		return errors.New("missing command")
	}

	cfg, err := readConfig()
	if err != nil {
		return err
	}
	if device != "" {
		cfg.Device = device
	}
	if baud != 0 {
		cfg.Baud = baud
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c, err := hostctl.Open(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cfg.Device, err)
	}
	defer c.Close()

	switch args[0] {
	case "set":
		if len(args) != 2 {
			return errors.New("set takes one RRGGBB colour")
		}
		col, err := hostctl.ParseColor(args[1])
		if err != nil {
			return err
		}
		return c.SetColor(ctx, col)

	case "clear":
		return c.Clear(ctx)

	case "monitor":
		return ignoreCanceled(c.Run(ctx, printLine))

	case "schedule":
		return ignoreCanceled(schedule(ctx, cfg, c))

	default:
		pflag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func schedule(ctx context.Context, cfg *hostctl.Config, c *hostctl.Client) error {
	if len(cfg.Schedule) == 0 {
		return errors.New("no [[schedule]] entries in config")
	}

	s := hostctl.NewScheduler(c, slog.Default())
	for _, e := range cfg.Schedule {
		if _, err := s.Add(e); err != nil {
			return err
		}
	}

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error { return s.Run(ctx) })
	errg.Go(func() error { return c.Run(ctx, printLine) })
	return errg.Wait()
}

func printLine(line string) {
	slog.Info("device", "line", line)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readConfig falls back to defaults when the default config file is absent.
func readConfig() (*hostctl.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !pflag.CommandLine.Changed("config") {
			return hostctl.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return hostctl.ParseConfig(f)
}
