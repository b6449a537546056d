package threads

// Lock is a binary lock owned by a thread.
//
// Waiters are served most favored first, in arrival order within a priority. On
// Release the lock passes directly to the woken waiter. Acquire by the owner is a
// no-op and Release by anyone else is ignored. There is no priority inheritance.
//
// The owner is tracked by slot and slot generation. A lock held by a thread that
// exits stays locked; a later thread reusing the slot does not own it.
type Lock struct {
	s       *Scheduler
	locked  bool
	owner   ThreadID
	gen     uint32
	waiters waitList
}

// NewLock returns an unlocked lock scheduled by s.
func NewLock(s *Scheduler) *Lock {
	l := &Lock{}
	l.init(s)
	return l
}

func (l *Lock) init(s *Scheduler) {
	l.s = s
	l.owner = noThread
	l.waiters = newWaitList()
}

// Acquire takes the lock, blocking while another thread holds it.
func (l *Lock) Acquire() error {
	s := l.s
	s.arch.Mask()
	id := s.current
	if id == IdleID {
		s.arch.Unmask()
		return ErrNoThread
	}
	switch {
	case !l.locked:
		l.takeLocked(id)
	case l.heldByLocked(id):
	default:
		l.waiters.putLocked(s, id)
		s.blockCurrentLocked(ReasonLock)
		if s.current != id {
			s.done()
			return ErrWouldBlock
		}
	}
	s.done()
	return nil
}

// TryAcquire takes the lock if it is free or already owned by the caller.
func (l *Lock) TryAcquire() bool {
	s := l.s
	s.arch.Mask()
	defer s.arch.Unmask()
	id := s.current
	if id == IdleID {
		return false
	}
	if !l.locked {
		l.takeLocked(id)
		return true
	}
	return l.heldByLocked(id)
}

// Release hands the lock to the most favored waiter or unlocks it.
func (l *Lock) Release() {
	s := l.s
	s.arch.Mask()
	if !l.heldByLocked(s.current) {
		s.arch.Unmask()
		return
	}
	if l.releaseLocked() {
		s.preemptLocked()
	}
	s.done()
}

func (l *Lock) takeLocked(id ThreadID) {
	l.locked = true
	l.owner = id
	l.gen = l.s.gens[id]
}

func (l *Lock) heldByLocked(id ThreadID) bool {
	return l.locked && id != IdleID && l.owner == id && l.gen == l.s.gens[id]
}

// releaseLocked hands the lock to the most favored waiter or unlocks it. It
// reports whether a waiter was made ready.
func (l *Lock) releaseLocked() bool {
	if next, ok := l.waiters.popLocked(l.s); ok {
		l.takeLocked(next)
		return true
	}
	l.locked = false
	l.owner = noThread
	return false
}

// Locked reports whether the lock is held.
func (l *Lock) Locked() bool {
	l.s.arch.Mask()
	defer l.s.arch.Unmask()
	return l.locked
}

// Owner returns the holder of the lock. A lock whose holder exited reports
// IdleID.
func (l *Lock) Owner() (ThreadID, bool) {
	l.s.arch.Mask()
	defer l.s.arch.Unmask()
	if l.locked && l.gen != l.s.gens[l.owner] {
		return IdleID, true
	}
	return l.owner, l.locked
}
