package threads

import (
	"github.com/rs/zerolog"

	"sparkrt/sparkos/threads/frame"
)

const (
	// Levels is the number of priority levels. Level 0 is the most favored.
	Levels = 8

	// MaxThreads is the size of the TCB table.
	MaxThreads = 16

	// MaxNameLen is the longest thread name kept in a TCB.
	MaxNameLen = 16

	// StackAlign is the alignment applied to both ends of a thread stack.
	StackAlign = 8

	// StackMargin is the space required below the initial frame.
	StackMargin = 64

	// MinStackSize is the smallest usable (aligned) stack.
	MinStackSize = frame.Size + StackMargin
)

// Config holds scheduler policy.
type Config struct {
	// Capacity limits the number of live TCBs (0 or > MaxThreads means MaxThreads).
	Capacity int

	// TimeSlice is the number of ticks a thread may run before it is rotated behind
	// its equal-priority peers. Zero disables round-robin within a level.
	TimeSlice uint32

	// KeepZombies leaves exited threads in ZOMBIE until Reap is called.
	KeepZombies bool

	// CheckInvariants verifies the full TCB/run-queue consistency after every
	// operation. Violations are fatal.
	CheckInvariants bool
}

// DefaultConfig returns the policy used by the firmware image.
func DefaultConfig() Config {
	return Config{
		Capacity:  MaxThreads,
		TimeSlice: 10,
	}
}

func (c Config) capacity() int {
	if c.Capacity <= 0 || c.Capacity > MaxThreads {
		return MaxThreads
	}
	return c.Capacity
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithConfig replaces the default policy.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

// WithLogger routes scheduler events to l.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithFatalHandler installs fn as the handler invoked on internal corruption.
//
// The handler is invoked at most once. It must not call back into the scheduler.
func WithFatalHandler(fn func(FatalInfo)) Option {
	return func(s *Scheduler) { s.onFatal = fn }
}
