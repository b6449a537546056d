package threads

// SetFlags ORs mask into the flags of id and wakes it if that satisfies its wait.
func (s *Scheduler) SetFlags(id ThreadID, mask ThreadFlags) error {
	woke, err := s.setFlags(id, mask)
	if err != nil {
		return err
	}
	if woke {
		s.preemptLocked()
	}
	s.done()
	return nil
}

// SetFlagsISR is SetFlags for interrupt context.
func (s *Scheduler) SetFlagsISR(id ThreadID, mask ThreadFlags) error {
	woke, err := s.setFlags(id, mask)
	if err != nil {
		return err
	}
	if woke {
		s.pendLocked()
	}
	s.done()
	return nil
}

// setFlags returns with the mask held on success.
func (s *Scheduler) setFlags(id ThreadID, mask ThreadFlags) (bool, error) {
	t, err := s.lockThread(id)
	if err != nil {
		return false, err
	}
	t.tflags |= mask
	if t.state != StateBlocked {
		return false, nil
	}
	switch {
	case t.reason == ReasonFlagsAny && t.tflags&t.waitMask != 0,
		t.reason == ReasonFlagsAll && t.tflags&t.waitMask == t.waitMask:
		s.makeReadyLocked(id)
		return true, nil
	}
	return false, nil
}

// WaitAny blocks until any flag of mask is set, then clears and returns the
// flags of mask that are set.
func (s *Scheduler) WaitAny(mask ThreadFlags) (ThreadFlags, error) {
	return s.waitFlags(mask, ReasonFlagsAny, func(f ThreadFlags) (ThreadFlags, bool) {
		res := f & mask
		return res, res != 0
	})
}

// WaitAll blocks until every flag of mask is set, then clears them and returns
// mask.
func (s *Scheduler) WaitAll(mask ThreadFlags) (ThreadFlags, error) {
	return s.waitFlags(mask, ReasonFlagsAll, func(f ThreadFlags) (ThreadFlags, bool) {
		return mask, f&mask == mask
	})
}

// WaitOne is WaitAny that clears and returns only the lowest set flag.
func (s *Scheduler) WaitOne(mask ThreadFlags) (ThreadFlags, error) {
	return s.waitFlags(mask, ReasonFlagsAny, func(f ThreadFlags) (ThreadFlags, bool) {
		res := f & mask
		return res & -res, res != 0
	})
}

func (s *Scheduler) waitFlags(mask ThreadFlags, reason Reason, cond func(ThreadFlags) (ThreadFlags, bool)) (ThreadFlags, error) {
	if mask == 0 {
		return 0, invalidArg("empty flag mask")
	}
	s.arch.Mask()
	id := s.current
	if id == IdleID {
		s.arch.Unmask()
		return 0, ErrNoThread
	}
	t := &s.tcbs[id]
	for {
		if res, ok := cond(t.tflags); ok {
			t.tflags &^= res
			s.done()
			return res, nil
		}
		t.waitMask = mask
		s.blockCurrentLocked(reason)
		if s.current != id {
			s.done()
			return 0, ErrWouldBlock
		}
	}
}

// ClearFlags clears mask for the running thread and returns the flags of mask
// that were set.
func (s *Scheduler) ClearFlags(mask ThreadFlags) ThreadFlags {
	s.arch.Mask()
	defer s.arch.Unmask()
	if s.current == IdleID {
		return 0
	}
	t := &s.tcbs[s.current]
	res := t.tflags & mask
	t.tflags &^= mask
	return res
}

// Flags returns the flags of the running thread.
func (s *Scheduler) Flags() ThreadFlags {
	s.arch.Mask()
	defer s.arch.Unmask()
	if s.current == IdleID {
		return 0
	}
	return s.tcbs[s.current].tflags
}
