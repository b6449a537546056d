package threads

import "fmt"

// maskView masks for a read-only snapshot. A halted scheduler still holds the
// mask of the context that hit the fatal condition and is read without it.
func (s *Scheduler) maskView() bool {
	if s.halted.Load() {
		return false
	}
	s.arch.Mask()
	return true
}

func (s *Scheduler) unmaskView(masked bool) {
	if masked {
		s.arch.Unmask()
	}
}

// Current returns the running thread, or IdleID.
func (s *Scheduler) Current() ThreadID {
	m := s.maskView()
	id := s.current
	s.unmaskView(m)
	return id
}

// State returns the state of id; free and out-of-range slots are StateInvalid.
func (s *Scheduler) State(id ThreadID) State {
	if int(id) >= MaxThreads {
		return StateInvalid
	}
	m := s.maskView()
	st := s.tcbs[id].state
	s.unmaskView(m)
	return st
}

// Priority returns the internal priority of a live thread.
func (s *Scheduler) Priority(id ThreadID) (uint8, error) {
	t, err := s.lockThread(id)
	if err != nil {
		return 0, err
	}
	p := t.prio
	s.arch.Unmask()
	return p, nil
}

// Info returns a snapshot of a live thread.
func (s *Scheduler) Info(id ThreadID) (ThreadInfo, bool) {
	if int(id) >= MaxThreads {
		return ThreadInfo{}, false
	}
	m := s.maskView()
	defer s.unmaskView(m)
	t := &s.tcbs[id]
	if !t.live() {
		return ThreadInfo{}, false
	}
	return s.infoLocked(id, t), true
}

// Threads returns a snapshot of all live threads ordered by ID.
func (s *Scheduler) Threads() []ThreadInfo {
	m := s.maskView()
	defer s.unmaskView(m)
	var out []ThreadInfo
	for i := range s.tcbs {
		if t := &s.tcbs[i]; t.live() {
			out = append(out, s.infoLocked(ThreadID(i), t))
		}
	}
	return out
}

func (s *Scheduler) infoLocked(id ThreadID, t *thread) ThreadInfo {
	free := -1
	if t.flags&CreateStackTest != 0 {
		free = untouched(t.stack)
	}
	return ThreadInfo{
		ID:        id,
		Name:      t.name,
		Priority:  t.prio,
		State:     t.state,
		Reason:    t.reason,
		Flags:     t.tflags,
		StackSize: len(t.stack),
		StackFree: free,
		Runs:      t.runs,
	}
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() Stats {
	m := s.maskView()
	defer s.unmaskView(m)
	st := Stats{
		Ticks:    s.ticks,
		Switches: s.switches,
		Current:  s.current,
		Pending:  s.pending,
	}
	for i := range s.tcbs {
		if s.tcbs[i].live() {
			st.Live++
		}
	}
	for lvl := uint8(0); lvl < Levels; lvl++ {
		st.Ready[lvl] = s.rq.len(lvl)
	}
	return st
}

// StackFree returns the number of stack bytes never written by a thread created
// with CreateStackTest.
func (s *Scheduler) StackFree(id ThreadID) (int, error) {
	t, err := s.lockThread(id)
	if err != nil {
		return 0, err
	}
	defer s.arch.Unmask()
	if t.flags&CreateStackTest == 0 {
		return 0, fmt.Errorf("threads: thread %s created without stack test: %w", id, ErrInvalidArgument)
	}
	return untouched(t.stack), nil
}

// Ready returns the ready threads of level from head to tail.
func (s *Scheduler) Ready(level uint8) []ThreadID {
	if level >= Levels {
		return nil
	}
	m := s.maskView()
	defer s.unmaskView(m)
	var out []ThreadID
	s.rq.each(level, func(id ThreadID) { out = append(out, id) })
	return out
}
