// Package archsim is a deterministic threads.Arch that records context switches
// instead of performing them.
//
// RestoreContext returns immediately, so after a switch the caller continues on
// behalf of the thread that was made current. Thread bodies never run. Tests and
// the scenario runner drive the scheduler step by step and inspect the trace.
package archsim

import (
	"context"
	"fmt"
	"sync"

	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/frame"
)

// Kind classifies a trace event.
type Kind uint8

const (
	KindSetup Kind = iota
	KindSave
	KindRestore
	KindExit
	KindPend
	KindWait
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindSave:
		return "save"
	case KindRestore:
		return "restore"
	case KindExit:
		return "exit"
	case KindPend:
		return "pend"
	case KindWait:
		return "wait"
	default:
		return "unknown"
	}
}

// Event is one recorded arch call.
type Event struct {
	Kind Kind
	ID   threads.ThreadID
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.ID)
}

// Arch implements threads.Arch.
type Arch struct {
	mu sync.Mutex

	// Trace lists every call in order. It is only written with the mask held.
	Trace []Event

	onCPU   threads.ThreadID
	pending int
}

// New returns an Arch with the idle context on the CPU.
func New() *Arch {
	return &Arch{onCPU: threads.IdleID}
}

func (a *Arch) record(k Kind, id threads.ThreadID) {
	a.Trace = append(a.Trace, Event{Kind: k, ID: id})
}

func (a *Arch) SetupStack(c *threads.Context) error {
	sp, err := frame.Init(c.Stack, frame.EntryToken(uint8(c.ID)), uint32(c.ID))
	if err != nil {
		return err
	}
	c.SP = sp
	a.record(KindSetup, c.ID)
	return nil
}

func (a *Arch) SaveContext(c *threads.Context) {
	a.record(KindSave, c.ID)
}

func (a *Arch) RestoreContext(c *threads.Context) {
	a.onCPU = c.ID
	a.record(KindRestore, c.ID)
}

func (a *Arch) ExitContext(c *threads.Context) {
	a.record(KindExit, c.ID)
}

// WaitForInterrupt returns immediately.
func (a *Arch) WaitForInterrupt(ctx context.Context) {
	a.mu.Lock()
	a.record(KindWait, a.onCPU)
	a.mu.Unlock()
}

func (a *Arch) Pend() {
	a.pending++
	a.record(KindPend, a.onCPU)
}

func (a *Arch) Mask()   { a.mu.Lock() }
func (a *Arch) Unmask() { a.mu.Unlock() }

// OnCPU returns the context restored last.
func (a *Arch) OnCPU() threads.ThreadID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onCPU
}

// Pends returns the number of Pend calls.
func (a *Arch) Pends() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// Restores returns the IDs of all restored contexts in order.
func (a *Arch) Restores() []threads.ThreadID {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []threads.ThreadID
	for _, e := range a.Trace {
		if e.Kind == KindRestore {
			out = append(out, e.ID)
		}
	}
	return out
}

// Reset clears the trace.
func (a *Arch) Reset() {
	a.mu.Lock()
	a.Trace = nil
	a.mu.Unlock()
}
