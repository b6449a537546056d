// Package app boots the scheduler on a HAL: it creates the demo workload and
// the thread monitor, feeds HAL ticks and key presses to the scheduler as
// interrupts, and runs the idle loop.
package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sparkrt/hal"
	"sparkrt/internal/buildinfo"
	"sparkrt/sparkos/services/logger"
	"sparkrt/sparkos/tasks/demo"
	"sparkrt/sparkos/tasks/ps"
	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/archhost"
	"sparkrt/sparkos/threads/cthread"
)

const monitorStackSize = 2048

// Config selects what the system runs.
type Config struct {
	Demo    bool
	Monitor bool
	// MonitorPeriod is the table refresh interval in ticks.
	MonitorPeriod uint32
	// TimeSlice overrides the scheduler time slice; see threads.Config.
	TimeSlice uint32
	// Check verifies scheduler invariants after every operation.
	Check    bool
	LogLevel zerolog.Level
	// TraceEvery limits per-switch trace lines to one per interval.
	TraceEvery time.Duration
	// ExitOnFatal makes the step function fail once the scheduler halted.
	ExitOnFatal bool
}

func DefaultConfig() Config {
	return Config{
		Demo:       true,
		Monitor:    true,
		TimeSlice:  threads.DefaultConfig().TimeSlice,
		LogLevel:   zerolog.InfoLevel,
		TraceEvery: 100 * time.Millisecond,
	}
}

// System is one booted scheduler with its workload.
type System struct {
	h   hal.HAL
	cfg Config
	log zerolog.Logger

	s    *threads.Scheduler
	api  *cthread.API
	demo *demo.Demo
	mon  *ps.Task

	fatal    atomic.Pointer[threads.FatalInfo]
	lastTick uint64

	monStack [monitorStackSize]byte
}

// NewSystem builds the scheduler and creates the configured threads. Nothing
// runs until Run.
func NewSystem(h hal.HAL, cfg Config) (*System, error) {
	sys := &System{
		h:   h,
		cfg: cfg,
		log: logger.Console(h.Logger(), cfg.LogLevel),
	}
	sys.log.Info().Str("version", buildinfo.Short()).Msg("spark rt boot")

	scfg := threads.DefaultConfig()
	scfg.TimeSlice = cfg.TimeSlice
	scfg.CheckInvariants = cfg.Check
	sys.s = threads.New(archhost.New(),
		threads.WithConfig(scfg),
		threads.WithLogger(logger.Limited(sys.log, cfg.TraceEvery, 8)),
		threads.WithFatalHandler(sys.onFatal),
	)
	sys.api = cthread.New(sys.s)

	if cfg.Demo {
		sys.demo = demo.New(sys.api, h.LED(), sys.log.With().Str("task", "demo").Logger(), demo.Config{})
		if err := sys.demo.Start(); err != nil {
			return nil, err
		}
	}
	if cfg.Monitor {
		pcfg := ps.Config{Period: cfg.MonitorPeriod}
		if sys.demo != nil {
			pcfg.Extra = sys.demo.Lines
		}
		sys.mon = ps.New(sys.s, h.Display(), sys.log.With().Str("task", "ps").Logger(), pcfg)
		if _, err := sys.api.ThreadCreate(sys.monStack[:], monitorStackSize, 2, cthread.ThreadCreateStacktest, ps.Entry, unsafe.Pointer(sys.mon), "ps"); err != nil {
			return nil, fmt.Errorf("app: create monitor: %w", err)
		}
	}
	return sys, nil
}

func (sys *System) Scheduler() *threads.Scheduler { return sys.s }

// Fatal returns the scheduler fatal report, if any.
func (sys *System) Fatal() (threads.FatalInfo, bool) {
	if info := sys.fatal.Load(); info != nil {
		return *info, true
	}
	return threads.FatalInfo{}, false
}

// Run runs the idle loop and the interrupt pumps until ctx is done.
func (sys *System) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sys.s.Run(ctx) })
	g.Go(func() error { return sys.pumpTicks(ctx) })
	g.Go(func() error { return sys.pumpKeys(ctx) })
	return g.Wait()
}

func (sys *System) pumpTicks(ctx context.Context) error {
	t := sys.h.Time()
	if t == nil || t.Ticks() == nil {
		return nil
	}
	ch := t.Ticks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case seq, ok := <-ch:
			if !ok {
				return nil
			}
			sys.tickTo(seq)
		}
	}
}

// tickTo delivers the ticks between the last seen sequence number and seq.
func (sys *System) tickTo(seq uint64) {
	if seq <= sys.lastTick {
		return
	}
	n := seq - sys.lastTick
	sys.lastTick = seq
	for ; n > 0; n-- {
		if sys.s.Halted() {
			return
		}
		sys.s.Tick()
	}
}

func (sys *System) pumpKeys(ctx context.Context) error {
	in := sys.h.Input()
	if in == nil || in.Keyboard() == nil || in.Keyboard().Events() == nil {
		return nil
	}
	ch := in.Keyboard().Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			sys.key(ev)
		}
	}
}

func (sys *System) key(ev hal.KeyEvent) {
	if sys.demo == nil || sys.s.Halted() {
		return
	}
	f := demo.KeyFlags(ev)
	if f == 0 {
		return
	}
	if err := sys.s.SetFlagsISR(sys.demo.Button(), f); err != nil {
		sys.log.Warn().Err(err).Msg("key")
	}
}

// New boots the system with the default config and returns the host frame
// step.
func New(h hal.HAL) func() error {
	return NewWithConfig(h, DefaultConfig())
}

// NewWithConfig boots the system in the background. The returned step reports
// a boot or run failure and, with ExitOnFatal, a scheduler halt.
func NewWithConfig(h hal.HAL, cfg Config) func() error {
	sys, err := NewSystem(h, cfg)
	if err != nil {
		return func() error { return err }
	}
	done := make(chan error, 1)
	go func() { done <- sys.Run(context.Background()) }()

	var runErr error
	return func() error {
		if runErr == nil {
			select {
			case err := <-done:
				runErr = fmt.Errorf("app: system stopped: %w", err)
			default:
			}
		}
		if runErr != nil {
			return runErr
		}
		if info, ok := sys.Fatal(); ok && cfg.ExitOnFatal {
			return &threads.CorruptionError{Info: info}
		}
		return nil
	}
}

// Run boots the system and never returns (TinyGo entrypoint).
func Run(h hal.HAL) {
	RunWithConfig(h, DefaultConfig())
}

func RunWithConfig(h hal.HAL, cfg Config) {
	bootStep(h, "create threads")
	sys, err := NewSystem(h, cfg)
	if err != nil {
		bootStep(h, err.Error())
		h.Logger().WriteLineString("boot: " + err.Error())
		select {}
	}
	bootStep(h, "scheduler start")
	if err := sys.Run(context.Background()); err != nil {
		h.Logger().WriteLineString("run: " + err.Error())
	}
	select {}
}
