package threads

import "fmt"

// ThreadID identifies a TCB slot. It is unique while the thread is alive and
// reused once the slot has been reclaimed.
type ThreadID uint8

// IdleID is the pseudo thread that runs when nothing is ready.
const IdleID ThreadID = 0xFF

func (id ThreadID) String() string {
	if id == IdleID {
		return "idle"
	}
	return fmt.Sprintf("%d", uint8(id))
}

// State is the lifecycle state of a TCB.
type State uint8

const (
	StateInvalid State = iota
	StateNew
	StateReady
	StateRunning
	StateBlocked
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Reason tells why a BLOCKED thread is not schedulable.
type Reason uint8

const (
	ReasonNone Reason = iota
	// ReasonBlocked is an explicit Block call.
	ReasonBlocked
	// ReasonPaused is Sleep or creation with CreateSleeping.
	ReasonPaused
	// ReasonDelay is a timed Delay.
	ReasonDelay
	// ReasonLock is a Lock, Mutex or Semaphore wait.
	ReasonLock
	// ReasonFlagsAny waits for any bit of the wait mask.
	ReasonFlagsAny
	// ReasonFlagsAll waits for every bit of the wait mask.
	ReasonFlagsAll
	// ReasonCondvar is a Condvar wait.
	ReasonCondvar
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBlocked:
		return "blocked"
	case ReasonPaused:
		return "paused"
	case ReasonDelay:
		return "delay"
	case ReasonLock:
		return "lock"
	case ReasonFlagsAny:
		return "flags-any"
	case ReasonFlagsAll:
		return "flags-all"
	case ReasonCondvar:
		return "condvar"
	default:
		return "unknown"
	}
}

// Label returns the short status label shown by thread listings.
func Label(s State, r Reason) string {
	switch s {
	case StateReady, StateRunning:
		return "pending"
	case StateZombie:
		return "zombie"
	case StateBlocked:
		switch r {
		case ReasonPaused, ReasonDelay:
			return "sleeping"
		case ReasonLock, ReasonCondvar:
			return "bl mutex"
		case ReasonFlagsAny:
			return "bl anyfl"
		case ReasonFlagsAll:
			return "bl allfl"
		default:
			return "blocked"
		}
	default:
		return "unknown"
	}
}

// CreateFlags control creation-time behavior.
type CreateFlags uint32

const (
	// CreateSleeping creates the thread paused; Wakeup or Unblock starts it.
	CreateSleeping CreateFlags = 1 << iota
	// CreateWithoutYield defers the preemption check to the next scheduling point.
	CreateWithoutYield
	// CreateStackTest fills the stack with a canary so StackFree can report usage.
	CreateStackTest
)

// ThreadFlags is the per-thread event bitmask.
type ThreadFlags uint16
