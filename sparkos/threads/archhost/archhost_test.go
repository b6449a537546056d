package archhost_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/archhost"
)

const timeout = 2 * time.Second

func newHost(t *testing.T, cfg threads.Config) *threads.Scheduler {
	t.Helper()
	cfg.CheckInvariants = true
	return threads.New(archhost.New(), threads.WithConfig(cfg))
}

func run(t *testing.T, s *threads.Scheduler) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("Run() did not return")
		}
	}
}

func collect(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var out []string
	for len(out) < n {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-time.After(timeout):
			t.Fatalf("timed out after %v", out)
		}
	}
	return out
}

func create(t *testing.T, s *threads.Scheduler, prio uint8, name string, fn threads.Entry) threads.ThreadID {
	t.Helper()
	id, err := s.Create(make([]byte, 512), prio, 0, fn, nil, name)
	if err != nil {
		t.Fatalf("Create(%q) err = %v", name, err)
	}
	return id
}

func TestRunsInPriorityOrder(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	out := make(chan string, 8)
	for _, tc := range []struct {
		prio uint8
		name string
	}{{3, "c"}, {1, "a"}, {2, "b"}} {
		name := tc.name
		create(t, s, tc.prio, name, func(any) any {
			out <- name
			return nil
		})
	}
	stop := run(t, s)

	if got, want := collect(t, out, 3), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() err = %v, want context.Canceled", err)
	}
	if n := len(s.Threads()); n != 0 {
		t.Fatalf("Threads() has %d entries after all returned", n)
	}
}

func TestYieldAlternates(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	out := make(chan string, 16)
	for _, name := range []string{"a", "b"} {
		name := name
		create(t, s, 4, name, func(any) any {
			for i := 0; i < 3; i++ {
				out <- fmt.Sprintf("%s%d", name, i)
				s.Yield()
			}
			return nil
		})
	}
	stop := run(t, s)
	defer stop()

	want := []string{"a0", "b0", "a1", "b1", "a2", "b2"}
	if got := collect(t, out, 6); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestHigherPriorityPreemptsOnCreate(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	out := make(chan string, 8)
	create(t, s, 5, "parent", func(any) any {
		out <- "parent start"
		_, err := s.Create(make([]byte, 512), 1, 0, func(any) any {
			out <- "child"
			return nil
		}, nil, "child")
		if err != nil {
			out <- err.Error()
		}
		out <- "parent end"
		return nil
	})
	stop := run(t, s)
	defer stop()

	want := []string{"parent start", "child", "parent end"}
	if got := collect(t, out, 3); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestSemaphoreProducerConsumer(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	sem := threads.NewSemaphore(s, 0)
	out := make(chan string, 16)

	create(t, s, 1, "consumer", func(any) any {
		for i := 0; i < 3; i++ {
			if err := sem.Acquire(); err != nil {
				out <- err.Error()
			}
			out <- fmt.Sprintf("c%d", i)
		}
		return nil
	})
	create(t, s, 3, "producer", func(any) any {
		for i := 0; i < 3; i++ {
			out <- fmt.Sprintf("p%d", i)
			sem.Release()
		}
		return nil
	})
	stop := run(t, s)
	defer stop()

	want := []string{"p0", "c0", "p1", "c1", "p2", "c2"}
	if got := collect(t, out, 6); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestMutexCounter(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	m := threads.NewMutex(s, 0)
	done := make(chan int, 4)
	for i := 0; i < 3; i++ {
		create(t, s, 4, fmt.Sprintf("w%d", i), func(any) any {
			for j := 0; j < 10; j++ {
				v, err := m.Lock()
				if err != nil {
					panic(err)
				}
				*v++
				s.Yield()
				m.Unlock()
			}
			v, _ := m.Lock()
			done <- *v
			m.Unlock()
			return nil
		})
	}
	stop := run(t, s)
	defer stop()

	best := 0
	for i := 0; i < 3; i++ {
		select {
		case v := <-done:
			if v > best {
				best = v
			}
		case <-time.After(timeout):
			t.Fatalf("workers did not finish")
		}
	}
	if best != 30 {
		t.Fatalf("counter = %d, want 30", best)
	}
}

func TestDelayWokenByTick(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	out := make(chan string, 4)
	id := create(t, s, 2, "sleeper", func(any) any {
		out <- "sleep"
		if err := s.Delay(3); err != nil {
			out <- err.Error()
		}
		out <- "awake"
		return nil
	})
	stop := run(t, s)
	defer stop()

	collect(t, out, 1)
	waitState(t, s, id, threads.StateBlocked)
	for i := 0; i < 2; i++ {
		s.Tick()
	}
	if st := s.State(id); st != threads.StateBlocked {
		t.Fatalf("State() = %s after 2 ticks", st)
	}
	s.Tick()
	if got := collect(t, out, 1); got[0] != "awake" {
		t.Fatalf("got %v, want awake", got)
	}
}

func TestFlagsFromInterrupt(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	out := make(chan threads.ThreadFlags, 2)
	id := create(t, s, 2, "waiter", func(any) any {
		f, err := s.WaitAll(0b11)
		if err != nil {
			panic(err)
		}
		out <- f
		return nil
	})
	stop := run(t, s)
	defer stop()

	waitState(t, s, id, threads.StateBlocked)
	if err := s.SetFlagsISR(id, 0b01); err != nil {
		t.Fatalf("SetFlagsISR() err = %v", err)
	}
	if err := s.SetFlagsISR(id, 0b10); err != nil {
		t.Fatalf("SetFlagsISR() err = %v", err)
	}
	select {
	case f := <-out:
		if f != 0b11 {
			t.Fatalf("WaitAll() = %#b, want 0b11", f)
		}
	case <-time.After(timeout):
		t.Fatalf("waiter not woken")
	}
}

func TestExitValueKeptForReap(t *testing.T) {
	cfg := threads.DefaultConfig()
	cfg.KeepZombies = true
	s := newHost(t, cfg)
	id := create(t, s, 2, "worker", func(any) any {
		if err := s.Exit("bye"); err != nil {
			panic(err)
		}
		panic("Exit returned")
	})
	stop := run(t, s)
	defer stop()

	waitState(t, s, id, threads.StateZombie)
	ret, err := s.Reap(id)
	if err != nil || ret != "bye" {
		t.Fatalf("Reap() = %v, %v", ret, err)
	}
}

func TestCondvarWaitReacquires(t *testing.T) {
	s := newHost(t, threads.DefaultConfig())
	m := threads.NewMutex(s, 0)
	cv := threads.NewCondvar(s)
	out := make(chan string, 8)
	create(t, s, 1, "waiter", func(any) any {
		v, err := m.Lock()
		for err == nil && *v == 0 {
			out <- "wait"
			v, err = m.Wait(cv)
		}
		if err != nil {
			out <- err.Error()
			return nil
		}
		out <- fmt.Sprintf("got %d", *v)
		m.Unlock()
		return nil
	})
	create(t, s, 3, "signaler", func(any) any {
		if err := m.Do(func(v *int) { *v = 7 }); err != nil {
			out <- err.Error()
			return nil
		}
		out <- "notify"
		cv.NotifyOne()
		return nil
	})
	stop := run(t, s)
	defer stop()

	want := []string{"wait", "notify", "got 7"}
	if got := collect(t, out, 3); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func waitState(t *testing.T, s *threads.Scheduler, id threads.ThreadID, want threads.State) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for s.State(id) != want {
		if time.Now().After(deadline) {
			t.Fatalf("State(%s) = %s, want %s", id, s.State(id), want)
		}
		time.Sleep(time.Millisecond)
	}
}
