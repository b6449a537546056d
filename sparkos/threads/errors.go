package threads

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a malformed request; nothing was changed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceExhausted reports a full TCB table; nothing was changed.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidState reports an operation that does not apply to the thread's
	// current state (e.g. unblocking a thread that is not blocked).
	ErrInvalidState = errors.New("invalid thread state")

	// ErrNoThread reports a thread-context call made while no thread runs.
	ErrNoThread = errors.New("no running thread")

	// ErrWouldBlock is returned by waits when the architecture resumed another
	// context without suspending the caller (archsim). The wait is registered and
	// completes once the thread is made ready.
	ErrWouldBlock = errors.New("would block")

	// ErrCorruption is wrapped by CorruptionError.
	ErrCorruption = errors.New("scheduler corruption")
)

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("threads: %s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

func invalidState(id ThreadID, st State) error {
	return fmt.Errorf("threads: thread %s is %s: %w", id, st, ErrInvalidState)
}

// CorruptionError is the panic value used when the scheduler halts.
type CorruptionError struct {
	Info FatalInfo
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("threads: %s (thread %s): %s", ErrCorruption, e.Info.Thread, e.Info.Reason)
}

func (e *CorruptionError) Unwrap() error { return ErrCorruption }
