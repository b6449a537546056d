package demo_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"sparkrt/hal"
	"sparkrt/sparkos/tasks/demo"
	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/archhost"
	"sparkrt/sparkos/threads/cthread"
)

type fakeLED struct {
	on    atomic.Bool
	edges atomic.Uint64
}

func (l *fakeLED) High() { l.set(true) }
func (l *fakeLED) Low()  { l.set(false) }

func (l *fakeLED) set(on bool) {
	if l.on.Swap(on) != on {
		l.edges.Add(1)
	}
}

func waitFor(t *testing.T, snaps <-chan demo.Counters, what string, ok func(demo.Counters) bool) demo.Counters {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-snaps:
			if ok(c) {
				return c
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func TestKeyFlags(t *testing.T) {
	require.Equal(t, demo.FlagPause, demo.KeyFlags(hal.KeyEvent{Code: hal.KeyF1, Press: true}))
	require.Equal(t, demo.FlagPause, demo.KeyFlags(hal.KeyEvent{Rune: '1', Press: true}))
	require.Equal(t, demo.FlagReport, demo.KeyFlags(hal.KeyEvent{Code: hal.KeyF2, Press: true}))
	require.Equal(t, demo.FlagKey, demo.KeyFlags(hal.KeyEvent{Rune: 'x', Press: true}))
	require.Zero(t, demo.KeyFlags(hal.KeyEvent{Code: hal.KeyF1}))
}

func TestStartCreatesThreads(t *testing.T) {
	s := threads.New(archhost.New(), threads.WithConfig(threads.Config{CheckInvariants: true}))
	d := demo.New(cthread.New(s), &fakeLED{}, zerolog.Nop(), demo.Config{})
	require.NoError(t, d.Start())

	infos := s.Threads()
	require.Len(t, infos, 7)
	names := map[string]threads.ThreadInfo{}
	for _, ti := range infos {
		names[ti.Name] = ti
	}
	require.Equal(t, threads.StateBlocked, names["report"].State)
	require.Equal(t, threads.ReasonPaused, names["report"].Reason)
	require.Equal(t, names["work-a"].Priority, names["work-b"].Priority)
	require.GreaterOrEqual(t, names["blink"].StackFree, 0)
	require.Equal(t, d.Button(), names["button"].ID)
}

func TestDemoRuns(t *testing.T) {
	s := threads.New(archhost.New(), threads.WithConfig(threads.Config{TimeSlice: 2, CheckInvariants: true}))
	led := &fakeLED{}
	d := demo.New(cthread.New(s), led, zerolog.Nop(), demo.Config{BlinkPeriod: 2, ProducePeriod: 1, Burst: 50})
	require.NoError(t, d.Start())

	snaps := make(chan demo.Counters, 1)
	_, err := s.Create(make([]byte, 512), 0, 0, func(any) any {
		for {
			c, err := d.Snapshot()
			if err != nil {
				return nil
			}
			select {
			case snaps <- c:
			default:
			}
			if s.Delay(2) != nil {
				return nil
			}
		}
	}, nil, "probe")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	go func() {
		tk := time.NewTicker(time.Millisecond)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				s.Tick()
			}
		}
	}()

	c := waitFor(t, snaps, "progress", func(c demo.Counters) bool {
		return c.Consumed >= 5 && c.Work[0] > 0 && c.Work[1] > 0
	})
	require.LessOrEqual(t, c.Consumed, c.Produced)
	require.LessOrEqual(t, c.Produced-c.Consumed, uint64(4))
	waitFor(t, snaps, "blinking", func(demo.Counters) bool { return led.edges.Load() >= 2 })

	require.NoError(t, s.SetFlagsISR(d.Button(), demo.FlagPause))
	waitFor(t, snaps, "pause", func(c demo.Counters) bool { return c.Paused })
	// The blinker finishes its current period before it parks.
	time.Sleep(50 * time.Millisecond)
	parked := led.edges.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, parked, led.edges.Load())

	require.NoError(t, s.SetFlagsISR(d.Button(), demo.FlagPause|demo.FlagReport))
	waitFor(t, snaps, "resume", func(c demo.Counters) bool {
		return !c.Paused && c.Reports == 1 && led.edges.Load() > parked
	})
}
