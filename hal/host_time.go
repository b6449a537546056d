//go:build !tinygo

package hal

import "time"

// hostClock converts wall time observed by the frame loop into a tick stream.
type hostClock struct {
	hz  int
	ch  chan uint64
	seq uint64

	last time.Time
	acc  time.Duration
}

func newHostClock(hz int) *hostClock {
	if hz <= 0 {
		hz = 1000
	}
	return &hostClock{hz: hz, ch: make(chan uint64, 1024)}
}

func (c *hostClock) Ticks() <-chan uint64 { return c.ch }
func (c *hostClock) Hz() int              { return c.hz }

func (c *hostClock) period() time.Duration {
	return time.Second / time.Duration(c.hz)
}

// advance emits the ticks that elapsed up to now and returns how many were
// due. The first call emits a single tick.
func (c *hostClock) advance(now time.Time) uint64 {
	if c.last.IsZero() {
		c.last = now
		c.acc = 0
		c.emit(1)
		return 1
	}
	c.acc += now.Sub(c.last)
	c.last = now

	n := uint64(c.acc / c.period())
	if n == 0 {
		return 0
	}
	c.acc %= c.period()
	c.emit(n)
	return n
}

// emit drops ticks the reader cannot keep up with; sequence numbers still
// advance so the reader can catch up.
func (c *hostClock) emit(n uint64) {
	for i := uint64(0); i < n; i++ {
		c.seq++
		select {
		case c.ch <- c.seq:
		default:
		}
	}
}
