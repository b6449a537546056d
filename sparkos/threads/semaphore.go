package threads

// Semaphore is a counting semaphore. A Release with waiters passes the permit
// straight to the most favored waiter.
type Semaphore struct {
	s       *Scheduler
	count   int
	waiters waitList
}

// NewSemaphore returns a semaphore holding n permits.
func NewSemaphore(s *Scheduler, n int) *Semaphore {
	if n < 0 {
		n = 0
	}
	return &Semaphore{s: s, count: n, waiters: newWaitList()}
}

// Acquire takes a permit, blocking until one is available.
func (sem *Semaphore) Acquire() error {
	s := sem.s
	s.arch.Mask()
	id := s.current
	if id == IdleID {
		s.arch.Unmask()
		return ErrNoThread
	}
	if sem.count > 0 {
		sem.count--
		s.done()
		return nil
	}
	sem.waiters.putLocked(s, id)
	s.blockCurrentLocked(ReasonLock)
	if s.current != id {
		s.done()
		return ErrWouldBlock
	}
	s.done()
	return nil
}

// TryAcquire takes a permit if one is available.
func (sem *Semaphore) TryAcquire() bool {
	sem.s.arch.Mask()
	defer sem.s.arch.Unmask()
	if sem.count == 0 {
		return false
	}
	sem.count--
	return true
}

// Release returns a permit.
func (sem *Semaphore) Release() {
	s := sem.s
	s.arch.Mask()
	if _, ok := sem.waiters.popLocked(s); ok {
		s.preemptLocked()
	} else {
		sem.count++
	}
	s.done()
}

// ReleaseISR is Release for interrupt context.
func (sem *Semaphore) ReleaseISR() {
	s := sem.s
	s.arch.Mask()
	if _, ok := sem.waiters.popLocked(s); ok {
		s.pendLocked()
	} else {
		sem.count++
	}
	s.done()
}

// Count returns the available permits.
func (sem *Semaphore) Count() int {
	sem.s.arch.Mask()
	defer sem.s.arch.Unmask()
	return sem.count
}
