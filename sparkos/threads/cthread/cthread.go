// Package cthread is the RIOT-style binding over the scheduler.
//
// Priorities here are application priorities: 0 is the least favored level and
// SchedPrioLevels-1 the most favored. They map onto scheduler levels as
// Levels-1-priority.
package cthread

import (
	"fmt"
	"unsafe"

	"sparkrt/sparkos/threads"
)

const (
	SchedPrioLevels = threads.Levels
	ThreadsNumof    = threads.MaxThreads

	ThreadCreateSleeping  uint32 = 1 << 0
	ThreadCreateWoutYield uint32 = 1 << 1
	ThreadCreateStacktest uint32 = 1 << 2

	createMask = ThreadCreateSleeping | ThreadCreateWoutYield | ThreadCreateStacktest

	// InvalidPID is returned where no thread applies.
	InvalidPID threads.ThreadID = 0xFF
)

// ThreadFunc is a thread body taking and returning an opaque pointer.
type ThreadFunc func(arg unsafe.Pointer) unsafe.Pointer

// InternalPriority maps an application priority to a scheduler level.
func InternalPriority(app uint8) uint8 {
	return SchedPrioLevels - 1 - app
}

// ApplicationPriority is the inverse of InternalPriority.
func ApplicationPriority(level uint8) uint8 {
	return SchedPrioLevels - 1 - level
}

// API binds the calls to one scheduler.
type API struct {
	s *threads.Scheduler
}

func New(s *threads.Scheduler) *API {
	return &API{s: s}
}

// Scheduler returns the bound scheduler.
func (a *API) Scheduler() *threads.Scheduler { return a.s }

// ThreadCreate creates a thread on the first stackSize bytes of stack.
func (a *API) ThreadCreate(stack []byte, stackSize int, priority uint8, flags uint32, fn ThreadFunc, arg unsafe.Pointer, name string) (threads.ThreadID, error) {
	switch {
	case fn == nil:
		return InvalidPID, fmt.Errorf("cthread: nil thread function: %w", threads.ErrInvalidArgument)
	case stackSize < 0 || stackSize > len(stack):
		return InvalidPID, fmt.Errorf("cthread: stack size %d exceeds buffer of %d bytes: %w", stackSize, len(stack), threads.ErrInvalidArgument)
	case priority >= SchedPrioLevels:
		return InvalidPID, fmt.Errorf("cthread: priority %d out of range [0, %d): %w", priority, SchedPrioLevels, threads.ErrInvalidArgument)
	case flags&^createMask != 0:
		return InvalidPID, fmt.Errorf("cthread: unknown create flags %#x: %w", flags&^createMask, threads.ErrInvalidArgument)
	}
	if stack != nil {
		stack = stack[:stackSize]
	}
	entry := func(v any) any {
		p, _ := v.(unsafe.Pointer)
		return fn(p)
	}
	return a.s.Create(stack, InternalPriority(priority), threads.CreateFlags(flags), entry, arg, name)
}

// ThreadGetActive returns the running thread.
func (a *API) ThreadGetActive() (threads.ThreadID, bool) {
	id := a.s.Current()
	return id, id != threads.IdleID
}

// ThreadGetPID returns the running thread or InvalidPID when idle.
func (a *API) ThreadGetPID() threads.ThreadID {
	if id, ok := a.ThreadGetActive(); ok {
		return id
	}
	return InvalidPID
}

// ThreadWakeup returns 1 if pid was sleeping and is now ready, 0xFF otherwise.
func (a *API) ThreadWakeup(pid threads.ThreadID) int {
	if a.s.Wakeup(pid) {
		return 1
	}
	return 0xFF
}

// ThreadYield rotates the caller behind its equal-priority peers.
func (a *API) ThreadYield() {
	a.s.Yield()
}

// ThreadYieldHigher switches only to a more favored thread.
func (a *API) ThreadYieldHigher() {
	a.s.Preempt()
}

// ThreadZombify ends the caller and leaves it as a zombie.
func (a *API) ThreadZombify() {
	_ = a.s.ExitZombie(nil)
}

// ThreadKillZombie frees a zombie. It returns 1 on success and -1 otherwise.
func (a *API) ThreadKillZombie(pid threads.ThreadID) int {
	if _, err := a.s.Reap(pid); err != nil {
		return -1
	}
	return 1
}

// PIDIsValid reports whether pid is in range.
func PIDIsValid(pid threads.ThreadID) bool {
	return int(pid) < ThreadsNumof
}

// ThreadIsActive reports whether pid is the running thread.
func (a *API) ThreadIsActive(pid threads.ThreadID) bool {
	return a.s.State(pid) == threads.StateRunning
}

// ThreadGetPriority returns the application priority of pid.
func (a *API) ThreadGetPriority(pid threads.ThreadID) (uint8, error) {
	p, err := a.s.Priority(pid)
	if err != nil {
		return 0, err
	}
	return ApplicationPriority(p), nil
}

// ThreadGetName returns the name of pid, or "" if it is not alive.
func (a *API) ThreadGetName(pid threads.ThreadID) string {
	info, ok := a.s.Info(pid)
	if !ok {
		return ""
	}
	return info.Name
}

// ThreadMeasureStackFree returns the unused stack bytes of a thread created
// with ThreadCreateStacktest.
func (a *API) ThreadMeasureStackFree(pid threads.ThreadID) (int, error) {
	return a.s.StackFree(pid)
}
