package threads

// waitList is a priority-ordered list of blocked threads threaded through the
// scheduler's blocklist. Equal priorities keep arrival order.
type waitList struct {
	head ThreadID
}

func newWaitList() waitList {
	return waitList{head: noThread}
}

func (w *waitList) empty() bool {
	return w.head == noThread
}

// putLocked inserts id, which must be blocked or about to block.
func (w *waitList) putLocked(s *Scheduler, id ThreadID) {
	prio := s.tcbs[id].prio
	prev := noThread
	next := w.head
	for next != noThread && s.tcbs[next].prio <= prio {
		prev = next
		next = s.blocklist[next]
	}
	s.blocklist[id] = next
	if prev == noThread {
		w.head = id
	} else {
		s.blocklist[prev] = id
	}
}

// popLocked unlinks the head and makes it ready.
func (w *waitList) popLocked(s *Scheduler) (ThreadID, bool) {
	id := w.head
	if id == noThread {
		return noThread, false
	}
	w.head = s.blocklist[id]
	s.blocklist[id] = noThread
	s.makeReadyLocked(id)
	return id, true
}
