package threads

import "context"

// Entry is a thread body. Its return value is kept as the exit value of the
// thread and can be collected with Reap.
type Entry func(arg any) any

// Context is the per-thread state shared with the architecture layer.
//
// SP is an offset into Stack. Entry is the trampoline the architecture must run
// when the context is restored for the first time; it is nil for the idle
// context, which is already running on the caller of Run.
type Context struct {
	ID    ThreadID
	Stack []byte
	SP    int
	Entry func()

	// Arch is owned by the Arch implementation.
	Arch any
}

// Arch is the context switch boundary.
//
// The scheduler calls every method except Pend and WaitForInterrupt with the
// mask held. RestoreContext hands the masked section to the resumed context:
// whichever context returns from RestoreContext (or starts in its Entry) owns the
// mask and is responsible for releasing it.
type Arch interface {
	// SetupStack writes the initial frame for c and sets c.SP.
	SetupStack(c *Context) error

	// SaveContext records the running context before a switch.
	SaveContext(c *Context)

	// RestoreContext resumes c. It returns once the context saved by the
	// preceding SaveContext call is resumed again, or immediately if no context
	// was saved.
	RestoreContext(c *Context)

	// ExitContext is called after the final RestoreContext of a terminated thread.
	ExitContext(c *Context)

	// WaitForInterrupt parks the idle loop until Pend is called or ctx is done.
	WaitForInterrupt(ctx context.Context)

	// Pend requests a reschedule from interrupt context.
	Pend()

	Mask()
	Unmask()
}
