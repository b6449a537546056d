package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sparkrt/hal"
	"sparkrt/sparkos/threads"
)

type testLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLog) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *testLog) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *testLog) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type testLED struct{}

func (testLED) High() {}
func (testLED) Low()  {}

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB {
	return &testFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) Present() error          { f.presents++; return nil }

func (f *testFB) ClearRGB(r, g, b uint8) {
	px := hal.RGB565(r, g, b)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(px), byte(px>>8)
	}
}

func (f *testFB) pixel(x, y int) uint16 {
	off := y*f.w*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

type testHAL struct {
	log   *testLog
	keys  chan hal.KeyEvent
	ticks chan uint64
}

func newTestHAL() *testHAL {
	return &testHAL{
		log:   &testLog{},
		keys:  make(chan hal.KeyEvent, 8),
		ticks: make(chan uint64, 64),
	}
}

func (h *testHAL) Logger() hal.Logger     { return h.log }
func (h *testHAL) LED() hal.LED           { return testLED{} }
func (h *testHAL) Display() hal.Display   { return nil }
func (h *testHAL) Input() hal.Input       { return h }
func (h *testHAL) Time() hal.Time         { return h }
func (h *testHAL) Keyboard() hal.Keyboard { return h }

func (h *testHAL) Events() <-chan hal.KeyEvent { return h.keys }
func (h *testHAL) Ticks() <-chan uint64        { return h.ticks }
func (h *testHAL) Hz() int                     { return 1000 }

func eventually(t *testing.T, what string, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !ok() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewSystemCreatesThreads(t *testing.T) {
	h := newTestHAL()
	cfg := DefaultConfig()
	cfg.Check = true
	sys, err := NewSystem(h, cfg)
	require.NoError(t, err)
	require.Len(t, sys.Scheduler().Threads(), 8)
	require.Contains(t, h.log.joined(), "spark rt boot")

	cfg.Demo = false
	sys, err = NewSystem(newTestHAL(), cfg)
	require.NoError(t, err)
	infos := sys.Scheduler().Threads()
	require.Len(t, infos, 1)
	require.Equal(t, "ps", infos[0].Name)
}

func TestTickToDeliversMissedTicks(t *testing.T) {
	sys, err := NewSystem(newTestHAL(), Config{})
	require.NoError(t, err)

	sys.tickTo(1)
	require.Equal(t, uint64(1), sys.Scheduler().Stats().Ticks)
	sys.tickTo(5)
	require.Equal(t, uint64(5), sys.Scheduler().Stats().Ticks)
	sys.tickTo(3)
	require.Equal(t, uint64(5), sys.Scheduler().Stats().Ticks)
}

func TestRunPumpsTicksAndKeys(t *testing.T) {
	h := newTestHAL()
	cfg := DefaultConfig()
	cfg.Monitor = false
	cfg.Check = true
	sys, err := NewSystem(h, cfg)
	require.NoError(t, err)
	s := sys.Scheduler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sys.Run(ctx)

	for seq := uint64(1); seq <= 10; seq++ {
		h.ticks <- seq
	}
	eventually(t, "ticks", func() bool { return s.Stats().Ticks == 10 })

	button := sys.demo.Button()
	eventually(t, "button waiting", func() bool {
		ti, _ := s.Info(button)
		return ti.State == threads.StateBlocked && ti.Reason == threads.ReasonFlagsAny
	})
	before, _ := s.Info(button)

	h.keys <- hal.KeyEvent{Code: hal.KeyF2, Press: true}
	eventually(t, "button woken", func() bool {
		ti, _ := s.Info(button)
		return ti.Runs > before.Runs
	})
}

func TestFatalScreen(t *testing.T) {
	fb := newTestFB(320, 240)
	lines := fatalLines(threads.FatalInfo{
		Reason: "queue corrupted",
		Thread: 3,
		Detail: "thread 3 queued in state blocked",
		Stack:  []byte("goroutine 1 [running]:\n\tmain.go:10\n"),
	})
	require.Equal(t, "reason: queue corrupted", lines[2])
	require.Equal(t, "  main.go:10", lines[len(lines)-1])

	drawFatal(fb, lines)
	require.Equal(t, 1, fb.presents)

	white, black := 0, 0
	for y := 0; y < fb.h; y++ {
		for x := 0; x < fb.w; x++ {
			switch fb.pixel(x, y) {
			case 0xFFFF:
				white++
			case 0:
				black++
			}
		}
	}
	require.Positive(t, black)
	require.Greater(t, white, black)
}

func TestSplitRunes(t *testing.T) {
	head, rest := splitRunes("привет", 2)
	require.Equal(t, "пр", head)
	require.Equal(t, "ивет", rest)

	head, rest = splitRunes("ok", 5)
	require.Equal(t, "ok", head)
	require.Empty(t, rest)
}
