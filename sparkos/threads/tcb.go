package threads

// thread is a TCB slot.
type thread struct {
	state  State
	reason Reason
	prio   uint8
	flags  CreateFlags

	tflags   ThreadFlags
	waitMask ThreadFlags
	wakeAt   uint64

	name  string
	stack []byte
	ctx   Context

	entry Entry
	arg   any
	ret   any

	keepZombie bool
	runs       uint64
}

func (t *thread) live() bool {
	return t.state != StateInvalid
}

func (t *thread) reset() {
	*t = thread{}
}

// ThreadInfo is a snapshot of one TCB.
type ThreadInfo struct {
	ID        ThreadID
	Name      string
	Priority  uint8
	State     State
	Reason    Reason
	Flags     ThreadFlags
	StackSize int
	// StackFree is the untouched stack byte count, or -1 without CreateStackTest.
	StackFree int
	Runs      uint64
}

// Label returns the short status label of the thread.
func (ti ThreadInfo) Label() string {
	return Label(ti.State, ti.Reason)
}

// Stats is a scheduler-wide counter snapshot.
type Stats struct {
	Ticks    uint64
	Switches uint64
	Live     int
	Current  ThreadID
	Pending  bool
	Ready    [Levels]int
}

func truncateName(name string) string {
	if len(name) > MaxNameLen {
		return name[:MaxNameLen]
	}
	return name
}
