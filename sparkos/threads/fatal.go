package threads

import (
	"fmt"
	"runtime"
)

// FatalInfo describes a scheduler corruption.
type FatalInfo struct {
	Reason string
	Thread ThreadID
	Detail string
	Stack  []byte
}

// Halted reports whether the scheduler hit a fatal condition.
func (s *Scheduler) Halted() bool {
	return s.halted.Load()
}

// fatal halts the scheduler. It never returns.
func (s *Scheduler) fatal(id ThreadID, reason string, format string, args ...any) {
	info := FatalInfo{
		Reason: reason,
		Thread: id,
		Detail: fmt.Sprintf(format, args...),
	}
	s.fatalOnce.Do(func() {
		s.halted.Store(true)
		info.Stack = captureStack()
		s.log.Error().
			Str("reason", info.Reason).
			Stringer("thread", info.Thread).
			Str("detail", info.Detail).
			Msg("scheduler halted")
		if s.onFatal != nil {
			s.onFatal(info)
		}
	})
	panic(&CorruptionError{Info: info})
}

func captureStack() []byte {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return buf[:n]
}
