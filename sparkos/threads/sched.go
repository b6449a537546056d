// Package threads implements a fixed-priority preemptive thread scheduler.
//
// All scheduler state lives in a Scheduler value and is only touched with the
// architecture mask held. Calls are split in two groups:
//
//   - thread context (Create, Yield, Block, Unblock, Sleep, Delay, Exit, the
//     flag waits and the sync primitives) may switch before returning;
//   - interrupt context (Tick, UnblockISR, WakeupISR, SetFlagsISR,
//     Semaphore.ReleaseISR) never switch. They pend a reschedule that the running
//     thread serves at its next scheduling point, or that wakes the idle loop.
//
// Priority 0 is the most favored level. A thread is preempted only by a strictly
// more favored one; equal-priority threads rotate on Yield or, with
// Config.TimeSlice, when their slice expires.
package threads

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Scheduler owns the TCB table and the ready queues.
type Scheduler struct {
	arch    Arch
	cfg     Config
	log     zerolog.Logger
	onFatal func(FatalInfo)

	fatalOnce sync.Once
	halted    atomic.Bool

	tcbs      [MaxThreads]thread
	gens      [MaxThreads]uint32
	rq        runQueue
	blocklist [MaxThreads]ThreadID

	current ThreadID
	idle    Context
	started bool

	pending   bool
	pendYield bool
	slice     uint32

	ticks    uint64
	switches uint64
}

// New returns a scheduler that switches contexts through arch.
func New(arch Arch, opts ...Option) *Scheduler {
	s := &Scheduler{
		arch:    arch,
		cfg:     DefaultConfig(),
		log:     zerolog.Nop(),
		rq:      newRunQueue(),
		current: IdleID,
		idle:    Context{ID: IdleID},
	}
	for i := range s.blocklist {
		s.blocklist[i] = noThread
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.slice = s.cfg.TimeSlice
	return s
}

// Config returns the active policy.
func (s *Scheduler) Config() Config { return s.cfg }

// Start marks the scheduler running and dispatches the most favored ready
// thread. Run does the same and then stays in the idle loop; Start is for
// architectures whose RestoreContext returns immediately.
func (s *Scheduler) Start() {
	s.arch.Mask()
	s.started = true
	s.log.Debug().Msg("scheduler started")
	s.preemptLocked()
	s.done()
}

// Run is the idle loop. It dispatches ready threads and parks in
// Arch.WaitForInterrupt while nothing is ready. Run returns ctx.Err() once ctx is
// done and the idle context is current again.
func (s *Scheduler) Run(ctx context.Context) error {
	s.arch.Mask()
	if !s.started {
		s.started = true
		s.log.Debug().Msg("scheduler started")
	}
	for {
		for s.current == IdleID && s.rq.bitcache != 0 {
			s.dispatchLocked(true)
		}
		s.pending = false
		s.done()

		if err := ctx.Err(); err != nil {
			return err
		}
		s.arch.WaitForInterrupt(ctx)
		s.arch.Mask()
	}
}

// Yield moves the running thread behind its equal-priority peers and runs the
// most favored ready thread. Yield without peers returns without a switch.
func (s *Scheduler) Yield() {
	s.arch.Mask()
	if id := s.current; id != IdleID {
		t := &s.tcbs[id]
		t.state = StateReady
		s.rq.push(id, t.prio)
	}
	s.pending = false
	s.dispatchLocked(true)
	s.done()
}

// Preempt is a scheduling point: it serves a reschedule pended from interrupt
// context and switches if a strictly more favored thread is ready.
func (s *Scheduler) Preempt() {
	s.arch.Mask()
	s.preemptLocked()
	s.done()
}

// Tick advances the scheduler clock by one tick. It releases due Delay sleepers
// and accounts the time slice of the running thread. Interrupt context.
func (s *Scheduler) Tick() {
	s.arch.Mask()
	s.ticks++
	for i := range s.tcbs {
		t := &s.tcbs[i]
		if t.state == StateBlocked && t.reason == ReasonDelay && t.wakeAt <= s.ticks {
			s.makeReadyLocked(ThreadID(i))
		}
	}
	if s.cfg.TimeSlice > 0 && s.current != IdleID {
		if s.slice > 0 {
			s.slice--
		}
		if s.slice == 0 {
			s.slice = s.cfg.TimeSlice
			if !s.rq.empty(s.tcbs[s.current].prio) {
				s.pendYield = true
			}
		}
	}
	s.pendLocked()
	s.done()
}

// done verifies the invariants and releases the mask.
func (s *Scheduler) done() {
	s.checkLocked()
	s.arch.Unmask()
}

func (s *Scheduler) contextOf(id ThreadID) *Context {
	if id == IdleID {
		return &s.idle
	}
	return &s.tcbs[id].ctx
}

// needsSwitchLocked reports whether the running context should give way.
func (s *Scheduler) needsSwitchLocked() bool {
	if s.current == IdleID {
		return s.rq.bitcache != 0
	}
	return s.pendYield || s.rq.outranks(s.tcbs[s.current].prio)
}

// pendLocked requests a reschedule from interrupt context.
func (s *Scheduler) pendLocked() {
	if s.started && s.needsSwitchLocked() {
		s.pending = true
		s.arch.Pend()
	}
}

// preemptLocked switches away from the running context when a pended time slice
// expired or a more favored thread is ready.
func (s *Scheduler) preemptLocked() {
	yield := s.pendYield
	s.pending, s.pendYield = false, false
	if !s.started {
		return
	}
	id := s.current
	if id == IdleID {
		if s.rq.bitcache != 0 {
			s.dispatchLocked(true)
		}
		return
	}
	t := &s.tcbs[id]
	switch {
	case yield && !s.rq.empty(t.prio):
		t.state = StateReady
		s.rq.push(id, t.prio)
	case s.rq.outranks(t.prio):
		// A preempted thread keeps its place among its peers.
		t.state = StateReady
		s.rq.pushFront(id, t.prio)
	default:
		return
	}
	s.dispatchLocked(true)
}

// dispatchLocked makes the most favored ready thread (or idle) current. The
// running context must already be queued, blocked or terminated. With
// resumePrev the previous context is saved so that it can be resumed later;
// dispatchLocked then returns once that happens.
func (s *Scheduler) dispatchLocked(resumePrev bool) {
	prev := s.current
	next, ok := s.rq.popHighest()
	if !ok {
		next = IdleID
	}
	if next == prev {
		if next != IdleID {
			s.tcbs[next].state = StateRunning
		}
		return
	}
	if next != IdleID {
		t := &s.tcbs[next]
		if t.state != StateReady {
			s.fatal(next, "dispatch of a thread that is not ready", "state %s", t.state)
		}
		t.state = StateRunning
		t.reason = ReasonNone
		t.runs++
	}
	s.current = next
	s.slice = s.cfg.TimeSlice
	s.pendYield = false
	s.switches++
	s.checkLocked()

	s.log.Trace().
		Stringer("from", prev).
		Stringer("to", next).
		Uint64("switches", s.switches).
		Msg("switch")

	if resumePrev {
		s.arch.SaveContext(s.contextOf(prev))
	}
	s.arch.RestoreContext(s.contextOf(next))
}

// makeReadyLocked queues a blocked thread at the tail of its level.
func (s *Scheduler) makeReadyLocked(id ThreadID) {
	t := &s.tcbs[id]
	t.state = StateReady
	t.reason = ReasonNone
	t.waitMask = 0
	s.rq.push(id, t.prio)
}

// blockCurrentLocked parks the running thread and switches away.
func (s *Scheduler) blockCurrentLocked(reason Reason) {
	t := &s.tcbs[s.current]
	t.state = StateBlocked
	t.reason = reason
	s.pending = false
	s.dispatchLocked(true)
}

// checkLocked verifies TCB and run-queue consistency when enabled.
func (s *Scheduler) checkLocked() {
	if !s.cfg.CheckInvariants {
		return
	}
	running, ready := 0, 0
	for i := range s.tcbs {
		id := ThreadID(i)
		t := &s.tcbs[i]
		queued := s.rq.contains(id)
		switch t.state {
		case StateRunning:
			running++
			if id != s.current {
				s.fatal(id, "running thread is not current", "current %s", s.current)
			}
			if queued {
				s.fatal(id, "running thread is queued", "level %d", t.prio)
			}
		case StateReady:
			ready++
			if !queued {
				s.fatal(id, "ready thread is not queued", "level %d", t.prio)
			}
		default:
			if queued {
				s.fatal(id, "queued thread is not ready", "state %s", t.state)
			}
		}
	}
	if running > 1 {
		s.fatal(s.current, "more than one running thread", "%d running", running)
	}
	if s.current != IdleID && s.tcbs[s.current].state != StateRunning {
		s.fatal(s.current, "current thread is not running", "state %s", s.tcbs[s.current].state)
	}

	total := 0
	for lvl := uint8(0); lvl < Levels; lvl++ {
		if s.rq.empty(lvl) == (s.rq.bitcache&(1<<lvl) != 0) {
			s.fatal(IdleID, "priority bitmap out of sync", "level %d bitmap %#x", lvl, s.rq.bitcache)
		}
		s.rq.each(lvl, func(id ThreadID) {
			total++
			if total > MaxThreads {
				s.fatal(id, "run queue cycle", "level %d", lvl)
			}
			if s.tcbs[id].prio != lvl {
				s.fatal(id, "thread queued at the wrong level", "queued %d priority %d", lvl, s.tcbs[id].prio)
			}
		})
	}
	if total != ready {
		s.fatal(IdleID, "run queue length mismatch", "%d queued %d ready", total, ready)
	}
}
