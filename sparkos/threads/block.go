package threads

// Block takes id out of scheduling. Blocking the running thread switches away;
// a READY thread is removed from its queue.
func (s *Scheduler) Block(id ThreadID) error {
	t, err := s.lockThread(id)
	if err != nil {
		return err
	}
	switch {
	case id == s.current:
		s.blockCurrentLocked(ReasonBlocked)
	case t.state == StateReady:
		s.rq.remove(id, t.prio)
		t.state = StateBlocked
		t.reason = ReasonBlocked
	default:
		st := t.state
		s.arch.Unmask()
		return invalidState(id, st)
	}
	s.done()
	return nil
}

// Unblock makes a blocked thread READY at the tail of its level and switches to
// it if it outranks the caller. Threads waiting on a Lock, Semaphore or Condvar
// can only be released by it.
func (s *Scheduler) Unblock(id ThreadID) error {
	if err := s.unblock(id); err != nil {
		return err
	}
	s.preemptLocked()
	s.done()
	return nil
}

// UnblockISR is Unblock for interrupt context.
func (s *Scheduler) UnblockISR(id ThreadID) error {
	if err := s.unblock(id); err != nil {
		return err
	}
	s.pendLocked()
	s.done()
	return nil
}

// unblock returns with the mask held on success.
func (s *Scheduler) unblock(id ThreadID) error {
	t, err := s.lockThread(id)
	if err != nil {
		return err
	}
	if t.state != StateBlocked || t.reason == ReasonLock || t.reason == ReasonCondvar {
		st := t.state
		s.arch.Unmask()
		return invalidState(id, st)
	}
	s.makeReadyLocked(id)
	return nil
}

// Sleep pauses the running thread until Wakeup or Unblock.
func (s *Scheduler) Sleep() error {
	s.arch.Mask()
	if s.current == IdleID {
		s.arch.Unmask()
		return ErrNoThread
	}
	s.blockCurrentLocked(ReasonPaused)
	s.done()
	return nil
}

// Wakeup resumes a thread paused by Sleep or created with CreateSleeping. It
// reports false if id is not paused.
func (s *Scheduler) Wakeup(id ThreadID) bool {
	if !s.wakeup(id) {
		return false
	}
	s.preemptLocked()
	s.done()
	return true
}

// WakeupISR is Wakeup for interrupt context.
func (s *Scheduler) WakeupISR(id ThreadID) bool {
	if !s.wakeup(id) {
		return false
	}
	s.pendLocked()
	s.done()
	return true
}

func (s *Scheduler) wakeup(id ThreadID) bool {
	t, err := s.lockThread(id)
	if err != nil {
		return false
	}
	if t.state != StateBlocked || t.reason != ReasonPaused {
		s.arch.Unmask()
		return false
	}
	s.makeReadyLocked(id)
	return true
}

// Delay blocks the running thread for ticks scheduler ticks. Delay(0) yields.
func (s *Scheduler) Delay(ticks uint32) error {
	s.arch.Mask()
	id := s.current
	if id == IdleID {
		s.arch.Unmask()
		return ErrNoThread
	}
	if ticks == 0 {
		s.arch.Unmask()
		s.Yield()
		return nil
	}
	s.tcbs[id].wakeAt = s.ticks + uint64(ticks)
	s.blockCurrentLocked(ReasonDelay)
	s.done()
	return nil
}
