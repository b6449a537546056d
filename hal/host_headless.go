//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"os"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	// FrameHz is the rate at which the clock is advanced and step is called.
	FrameHz int
	// TickHz is the scheduler tick rate of the clock.
	TickHz int
	// Frames stops the runner after that many frames; zero runs until ctx ends.
	Frames uint64
}

// RunHeadless runs the system without opening a window.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	return runHeadless(ctx, newHost(os.Stdout, cfg.TickHz), newApp, cfg)
}

func runHeadless(ctx context.Context, h *hostHAL, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	if cfg.FrameHz <= 0 {
		cfg.FrameHz = 60
	}
	d := time.Second / time.Duration(cfg.FrameHz)
	if d <= 0 {
		return fmt.Errorf("invalid headless frame rate: %d", cfg.FrameHz)
	}

	step := newApp(h)
	t := time.NewTicker(d)
	defer t.Stop()

	var frames uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			h.clock.advance(now)
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			frames++
			if cfg.Frames > 0 && frames >= cfg.Frames {
				return nil
			}
		}
	}
}
