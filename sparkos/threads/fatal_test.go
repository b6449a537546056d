package threads

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubArch struct {
	mu sync.Mutex
}

func (a *stubArch) SetupStack(c *Context) error          { c.SP = len(c.Stack) - 64; return nil }
func (a *stubArch) SaveContext(*Context)                 {}
func (a *stubArch) RestoreContext(*Context)              {}
func (a *stubArch) ExitContext(*Context)                 {}
func (a *stubArch) WaitForInterrupt(ctx context.Context) {}
func (a *stubArch) Pend()                                {}
func (a *stubArch) Mask()                                { a.mu.Lock() }
func (a *stubArch) Unmask()                              { a.mu.Unlock() }

func catchCorruption(t *testing.T, fn func()) (err *CorruptionError) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("no panic")
		}
		var ok bool
		if err, ok = r.(*CorruptionError); !ok {
			t.Fatalf("panic value = %#v, want *CorruptionError", r)
		}
	}()
	fn()
	return nil
}

func TestCorruptionIsFatal(t *testing.T) {
	var calls []FatalInfo
	cfg := DefaultConfig()
	cfg.CheckInvariants = true
	s := New(&stubArch{}, WithConfig(cfg), WithFatalHandler(func(info FatalInfo) {
		calls = append(calls, info)
	}))
	a, err := s.Create(make([]byte, 256), 3, 0, func(any) any { return nil }, nil, "a")
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}

	// Queued but no longer READY.
	s.tcbs[a].state = StateBlocked
	cerr := catchCorruption(t, func() { s.Tick() })

	if !errors.Is(cerr, ErrCorruption) {
		t.Fatalf("errors.Is(%v, ErrCorruption) = false", cerr)
	}
	if cerr.Info.Thread != a {
		t.Fatalf("Info.Thread = %s, want %s", cerr.Info.Thread, a)
	}
	if len(calls) != 1 || calls[0].Reason != cerr.Info.Reason || len(calls[0].Stack) == 0 {
		t.Fatalf("fatal handler calls = %+v", calls)
	}
	if !s.Halted() {
		t.Fatalf("Halted() = false")
	}

	// The handler runs once even if the scheduler is poked again.
	s.arch.Unmask()
	catchCorruption(t, func() { s.Tick() })
	if len(calls) != 1 {
		t.Fatalf("fatal handler ran %d times", len(calls))
	}
}

func TestDispatchOfBlockedThreadIsFatal(t *testing.T) {
	s := New(&stubArch{})
	a, err := s.Create(make([]byte, 256), 3, 0, func(any) any { return nil }, nil, "a")
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}
	s.tcbs[a].state = StateZombie
	cerr := catchCorruption(t, func() { s.Start() })
	if cerr.Info.Thread != a {
		t.Fatalf("Info.Thread = %s, want %s", cerr.Info.Thread, a)
	}
}

func TestHaltedSchedulerIsReadable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CheckInvariants = true
	s := New(&stubArch{}, WithConfig(cfg))
	a, err := s.Create(make([]byte, 256), 3, 0, func(any) any { return nil }, nil, "a")
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}
	s.tcbs[a].state = StateBlocked
	catchCorruption(t, func() { s.Tick() })

	done := make(chan struct{})
	var (
		list  []ThreadInfo
		stats Stats
		info  ThreadInfo
		ok    bool
	)
	go func() {
		defer close(done)
		list = s.Threads()
		stats = s.Stats()
		info, ok = s.Info(a)
		_ = s.Current()
		_ = s.Ready(3)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("snapshot blocked on a halted scheduler")
	}
	if len(list) != 1 || !ok || info.State != StateBlocked {
		t.Fatalf("Threads() = %+v, Info() = %+v, %v", list, info, ok)
	}
	if stats.Ticks != 1 {
		t.Fatalf("Stats().Ticks = %d, want 1", stats.Ticks)
	}
}
