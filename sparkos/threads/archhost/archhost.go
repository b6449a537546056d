// Package archhost runs threads on goroutines.
//
// Each thread gets its own goroutine, started on its first restore. Exactly one
// of them (or the goroutine running the idle loop) is allowed to execute at a
// time: a switch wakes the target through its gate and parks the saved context
// on its own gate. The mask is a mutex whose ownership travels with the switch.
package archhost

import (
	"context"
	"runtime"
	"sync"

	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/frame"
)

type gate struct {
	ch      chan struct{}
	started bool
}

// Arch implements threads.Arch.
type Arch struct {
	mu    sync.Mutex
	pend  chan struct{}
	saved *threads.Context
}

// New returns a host Arch.
func New() *Arch {
	return &Arch{pend: make(chan struct{}, 1)}
}

func gateOf(c *threads.Context) *gate {
	if g, ok := c.Arch.(*gate); ok {
		return g
	}
	g := &gate{ch: make(chan struct{}, 1)}
	// The idle context has no entry; it is already running.
	g.started = c.Entry == nil
	c.Arch = g
	return g
}

// SetupStack writes the initial frame so that stack accounting matches the
// target, and gives the context a fresh gate.
func (a *Arch) SetupStack(c *threads.Context) error {
	sp, err := frame.Init(c.Stack, frame.EntryToken(uint8(c.ID)), uint32(c.ID))
	if err != nil {
		return err
	}
	c.SP = sp
	c.Arch = nil
	gateOf(c)
	return nil
}

func (a *Arch) SaveContext(c *threads.Context) {
	gateOf(c)
	a.saved = c
}

func (a *Arch) RestoreContext(c *threads.Context) {
	var park *gate
	if a.saved != nil {
		park = gateOf(a.saved)
		a.saved = nil
	}

	g := gateOf(c)
	if !g.started {
		g.started = true
		entry := c.Entry
		go func() {
			<-g.ch
			entry()
		}()
	}
	g.ch <- struct{}{}

	if park != nil {
		<-park.ch
	}
}

// ExitContext ends the goroutine of a terminated thread.
func (a *Arch) ExitContext(*threads.Context) {
	runtime.Goexit()
}

func (a *Arch) WaitForInterrupt(ctx context.Context) {
	select {
	case <-a.pend:
	case <-ctx.Done():
	}
}

func (a *Arch) Pend() {
	select {
	case a.pend <- struct{}{}:
	default:
	}
}

func (a *Arch) Mask()   { a.mu.Lock() }
func (a *Arch) Unmask() { a.mu.Unlock() }
