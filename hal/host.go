//go:build !tinygo

package hal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	hostWidth  = 320
	hostHeight = 240
)

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	clock  *hostClock
}

// New returns a host HAL whose clock ticks at hz.
func New(hz int) HAL {
	return newHost(os.Stdout, hz)
}

func newHost(out io.Writer, hz int) *hostHAL {
	logger := &hostLogger{w: out}
	return &hostHAL{
		logger: logger,
		led:    &hostLED{},
		fb:     newHostFramebuffer(hostWidth, hostHeight),
		kbd:    newHostKeyboard(),
		clock:  newHostClock(hz),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Time() Time       { return h.clock }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

// hostLED counts edges; the window shows its level.
type hostLED struct {
	mu    sync.Mutex
	on    bool
	edges uint64
}

func (l *hostLED) High() { l.set(true) }
func (l *hostLED) Low()  { l.set(false) }

func (l *hostLED) set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on == on {
		return
	}
	l.on = on
	l.edges++
}

// LEDState reports the host LED level and the number of edges seen so far.
func LEDState(h HAL) (on bool, edges uint64) {
	hh, ok := h.(*hostHAL)
	if !ok {
		return false, 0
	}
	hh.led.mu.Lock()
	defer hh.led.mu.Unlock()
	return hh.led.on, hh.led.edges
}
