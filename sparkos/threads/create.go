package threads

import "fmt"

// Create sets up a thread running entry(arg) on stack at priority prio.
//
// stack is owned by the caller and must stay valid until the thread has been
// reclaimed; it is aligned to StackAlign at both ends and must not overlap the
// stack of a live or zombie thread. The lowest free TCB slot is used.
//
// Unless CreateSleeping is set the thread is READY on return, or already ran if
// it outranks the caller and CreateWithoutYield is not set. On error nothing is
// changed.
func (s *Scheduler) Create(stack []byte, prio uint8, flags CreateFlags, entry Entry, arg any, name string) (ThreadID, error) {
	switch {
	case entry == nil:
		return IdleID, invalidArg("nil entry")
	case stack == nil:
		return IdleID, invalidArg("nil stack")
	case prio >= Levels:
		return IdleID, invalidArg("priority %d out of range [0, %d)", prio, Levels)
	}
	aligned := alignStack(stack)
	if len(aligned) < MinStackSize {
		return IdleID, invalidArg("stack of %d bytes is below the %d byte minimum", len(aligned), MinStackSize)
	}

	s.arch.Mask()
	for i := range s.tcbs {
		if t := &s.tcbs[i]; t.live() && overlaps(t.stack, aligned) {
			s.arch.Unmask()
			return IdleID, invalidArg("stack overlaps the stack of thread %d", i)
		}
	}
	id, ok := s.freeSlotLocked()
	if !ok {
		s.arch.Unmask()
		return IdleID, fmt.Errorf("threads: all %d slots in use: %w", s.cfg.capacity(), ErrResourceExhausted)
	}

	if flags&CreateStackTest != 0 {
		fillCanary(aligned)
	}
	t := &s.tcbs[id]
	t.ctx = Context{
		ID:    id,
		Stack: aligned,
		Entry: s.trampoline(entry, arg),
	}
	if err := s.arch.SetupStack(&t.ctx); err != nil {
		t.reset()
		s.arch.Unmask()
		return IdleID, fmt.Errorf("threads: setup stack: %w", err)
	}
	t.state = StateNew
	t.prio = prio
	t.flags = flags
	t.name = truncateName(name)
	t.stack = aligned
	t.entry = entry
	t.arg = arg

	if flags&CreateSleeping != 0 {
		t.state = StateBlocked
		t.reason = ReasonPaused
	} else {
		s.makeReadyLocked(id)
	}

	s.log.Debug().
		Stringer("id", id).
		Str("name", t.name).
		Uint8("prio", prio).
		Int("stack", len(aligned)).
		Msg("thread created")

	if flags&CreateWithoutYield == 0 {
		s.preemptLocked()
	}
	s.done()
	return id, nil
}

func (s *Scheduler) freeSlotLocked() (ThreadID, bool) {
	for i := 0; i < s.cfg.capacity(); i++ {
		if !s.tcbs[i].live() {
			return ThreadID(i), true
		}
	}
	return IdleID, false
}

// trampoline is the first code a thread runs. It owns the mask handed over by
// the RestoreContext that started it.
func (s *Scheduler) trampoline(entry Entry, arg any) func() {
	return func() {
		s.arch.Unmask()
		s.exit(entry(arg), false)
	}
}

// Exit terminates the running thread with exit value ret. On a context
// switching architecture it does not return.
func (s *Scheduler) Exit(ret any) error {
	return s.exit(ret, false)
}

// ExitZombie terminates the running thread and keeps its TCB in ZOMBIE until
// Reap is called, regardless of Config.KeepZombies.
func (s *Scheduler) ExitZombie(ret any) error {
	return s.exit(ret, true)
}

func (s *Scheduler) exit(ret any, keep bool) error {
	s.arch.Mask()
	id := s.current
	if id == IdleID {
		s.arch.Unmask()
		return ErrNoThread
	}
	t := &s.tcbs[id]
	t.ret = ret
	t.state = StateZombie
	t.reason = ReasonNone
	ctx := t.ctx
	keep = keep || t.keepZombie || s.cfg.KeepZombies
	if keep {
		t.keepZombie = true
	} else {
		s.releaseLocked(id)
	}

	s.log.Debug().
		Stringer("id", id).
		Bool("zombie", keep).
		Msg("thread exited")

	s.pending = false
	s.dispatchLocked(false)
	s.arch.ExitContext(&ctx)
	s.arch.Unmask()
	return nil
}

// Reap frees the TCB of a zombie thread and returns its exit value.
func (s *Scheduler) Reap(id ThreadID) (any, error) {
	if int(id) >= MaxThreads {
		return nil, invalidArg("thread id %d out of range", id)
	}
	s.arch.Mask()
	t := &s.tcbs[id]
	if t.state != StateZombie {
		st := t.state
		s.arch.Unmask()
		return nil, invalidState(id, st)
	}
	ret := t.ret
	s.releaseLocked(id)
	s.done()
	return ret, nil
}

// SetKeepZombie makes a later exit of id leave a zombie.
func (s *Scheduler) SetKeepZombie(id ThreadID, keep bool) error {
	t, err := s.lockThread(id)
	if err != nil {
		return err
	}
	t.keepZombie = keep
	s.arch.Unmask()
	return nil
}

// releaseLocked frees the slot of id and starts a new generation for it.
func (s *Scheduler) releaseLocked(id ThreadID) {
	s.tcbs[id].reset()
	s.blocklist[id] = noThread
	s.gens[id]++
}

// lockThread masks and returns the live TCB of id. On error the mask is
// released.
func (s *Scheduler) lockThread(id ThreadID) (*thread, error) {
	if int(id) >= MaxThreads {
		return nil, invalidArg("thread id %d out of range", id)
	}
	s.arch.Mask()
	t := &s.tcbs[id]
	if !t.live() {
		s.arch.Unmask()
		return nil, invalidState(id, StateInvalid)
	}
	return t, nil
}
