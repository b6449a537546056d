//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"sparkrt/app"
	"sparkrt/hal"
)

func main() {
	cfg := app.DefaultConfig()
	var (
		headless bool
		frameHz  int
		tickHz   int
		frames   uint64
		slice    uint
		level    string
	)
	flag.BoolVar(&headless, "headless", false, "Run without a window.")
	flag.IntVar(&frameHz, "hz", 60, "Frame rate in headless mode.")
	flag.IntVar(&tickHz, "tick-hz", 1000, "Scheduler tick rate.")
	flag.Uint64Var(&frames, "ticks", 0, "Stop after N frames in headless mode (0 = run forever).")
	flag.UintVar(&slice, "slice", uint(cfg.TimeSlice), "Time slice in ticks (0 disables round-robin).")
	flag.BoolVar(&cfg.Demo, "demo", true, "Run the demo workload.")
	flag.BoolVar(&cfg.Monitor, "ps", true, "Show the thread monitor.")
	flag.BoolVar(&cfg.Check, "check", false, "Verify scheduler invariants after every operation.")
	flag.StringVar(&level, "log", "info", "Log level (trace, debug, info, warn, error).")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.LogLevel = lvl
	cfg.TimeSlice = uint32(slice)

	newApp := func(h hal.HAL) func() error { return app.NewWithConfig(h, cfg) }

	if headless {
		cfg.ExitOnFatal = true
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err := hal.RunHeadless(ctx, newApp, hal.HeadlessConfig{FrameHz: frameHz, TickHz: tickHz, Frames: frames})
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp, hal.WindowConfig{TickHz: tickHz}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
