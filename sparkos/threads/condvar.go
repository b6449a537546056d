package threads

// Condvar blocks threads until another thread signals an event.
//
// Waiters are woken most favored first, in arrival order within a priority.
// Notifications are not buffered: a notify without waiters is lost.
type Condvar struct {
	s       *Scheduler
	waiters waitList
}

// NewCondvar returns a condition variable scheduled by s.
func NewCondvar(s *Scheduler) *Condvar {
	return &Condvar{s: s, waiters: newWaitList()}
}

// Wait releases l, which the caller must hold, blocks until NotifyOne or
// NotifyAll wakes the caller and then acquires l again.
func (c *Condvar) Wait(l *Lock) error {
	s := c.s
	s.arch.Mask()
	id := s.current
	if id == IdleID {
		s.arch.Unmask()
		return ErrNoThread
	}
	if !l.heldByLocked(id) {
		s.arch.Unmask()
		return invalidArg("condvar wait by thread %s without holding the lock", id)
	}
	c.waiters.putLocked(s, id)
	l.releaseLocked()
	s.blockCurrentLocked(ReasonCondvar)
	if s.current != id {
		s.done()
		return ErrWouldBlock
	}
	s.done()
	return l.Acquire()
}

// NotifyOne wakes the most favored waiter.
func (c *Condvar) NotifyOne() {
	s := c.s
	s.arch.Mask()
	if _, ok := c.waiters.popLocked(s); ok {
		s.preemptLocked()
	}
	s.done()
}

// NotifyAll wakes every waiter.
func (c *Condvar) NotifyAll() {
	s := c.s
	s.arch.Mask()
	woken := false
	for {
		if _, ok := c.waiters.popLocked(s); !ok {
			break
		}
		woken = true
	}
	if woken {
		s.preemptLocked()
	}
	s.done()
}

// NotifyISR is NotifyOne for interrupt context.
func (c *Condvar) NotifyISR() {
	s := c.s
	s.arch.Mask()
	if _, ok := c.waiters.popLocked(s); ok {
		s.pendLocked()
	}
	s.done()
}

// Waiting reports whether any thread waits on c.
func (c *Condvar) Waiting() bool {
	c.s.arch.Mask()
	defer c.s.arch.Unmask()
	return !c.waiters.empty()
}

// Wait waits on c with the mutex held and returns the guarded value once the
// mutex is held again.
func (m *Mutex[T]) Wait(c *Condvar) (*T, error) {
	if err := c.Wait(&m.lock); err != nil {
		return nil, err
	}
	return &m.value, nil
}
