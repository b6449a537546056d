package cthread

import "sparkrt/sparkos/threads"

// Status is the externally visible thread status.
type Status uint8

const (
	StatusInvalid Status = iota
	StatusRunning
	StatusPaused
	StatusZombie
	StatusMutexBlocked
	StatusFlagBlockedAny
	StatusFlagBlockedAll
	StatusBlocked
)

func (s Status) String() string {
	return ThreadStateToString(s)
}

// ThreadStateToString returns the label used in thread listings.
func ThreadStateToString(s Status) string {
	switch s {
	case StatusRunning:
		return "pending"
	case StatusZombie:
		return "zombie"
	case StatusPaused:
		return "sleeping"
	case StatusMutexBlocked:
		return "bl mutex"
	case StatusFlagBlockedAny:
		return "bl anyfl"
	case StatusFlagBlockedAll:
		return "bl allfl"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// StatusOf maps a scheduler state to a Status.
func StatusOf(st threads.State, r threads.Reason) Status {
	switch st {
	case threads.StateReady, threads.StateRunning:
		return StatusRunning
	case threads.StateZombie:
		return StatusZombie
	case threads.StateBlocked:
		switch r {
		case threads.ReasonPaused, threads.ReasonDelay:
			return StatusPaused
		case threads.ReasonLock, threads.ReasonCondvar:
			return StatusMutexBlocked
		case threads.ReasonFlagsAny:
			return StatusFlagBlockedAny
		case threads.ReasonFlagsAll:
			return StatusFlagBlockedAll
		default:
			return StatusBlocked
		}
	default:
		return StatusInvalid
	}
}

// ThreadGetStatus returns the status of pid.
func (a *API) ThreadGetStatus(pid threads.ThreadID) Status {
	info, ok := a.s.Info(pid)
	if !ok {
		return StatusInvalid
	}
	return StatusOf(info.State, info.Reason)
}
