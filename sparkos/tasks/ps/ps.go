// Package ps is the thread monitor: a thread that periodically renders the
// scheduler's thread table on the framebuffer.
package ps

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"sparkrt/hal"
	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/cthread"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	fontHeight = 10
	fontOffset = 6
)

// Config controls the monitor.
type Config struct {
	// Period is the refresh interval in ticks.
	Period uint32
	// LogEvery logs the table every LogEvery refreshes; zero never logs.
	LogEvery int
	// Extra returns additional lines shown below the table. It runs on the
	// monitor thread.
	Extra func() []string
}

// Task renders the thread table.
type Task struct {
	s    *threads.Scheduler
	disp hal.Display
	log  zerolog.Logger
	cfg  Config

	d       *fbDisplay
	refresh int
}

func New(s *threads.Scheduler, disp hal.Display, log zerolog.Logger, cfg Config) *Task {
	if cfg.Period == 0 {
		cfg.Period = 250
	}
	return &Task{s: s, disp: disp, log: log, cfg: cfg}
}

// Entry is the thread body; arg must be the *Task.
func Entry(arg unsafe.Pointer) unsafe.Pointer {
	t := (*Task)(arg)
	t.loop()
	return nil
}

func (t *Task) loop() {
	if t.disp != nil {
		if fb := t.disp.Framebuffer(); fb != nil {
			t.d = &fbDisplay{fb: fb}
		}
	}
	for {
		lines := Table(t.s.Threads(), t.s.Stats())
		if t.cfg.Extra != nil {
			lines = append(lines, "")
			lines = append(lines, t.cfg.Extra()...)
		}
		t.render(lines)

		t.refresh++
		if t.cfg.LogEvery > 0 && t.refresh%t.cfg.LogEvery == 0 {
			for _, l := range lines {
				t.log.Info().Msg(l)
			}
		}
		if err := t.s.Delay(t.cfg.Period); err != nil {
			t.log.Error().Err(err).Msg("ps delay")
			return
		}
	}
}

func (t *Task) render(lines []string) {
	if t.d == nil || !t.d.usable() {
		return
	}
	t.d.fb.ClearRGB(0, 0, 0)
	term := tinyterm.NewTerminal(t.d)
	term.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        fontHeight,
		FontOffset:        fontOffset,
		UseSoftwareScroll: true,
	})
	_, rows := t.d.Size()
	limit := int(rows)/fontHeight - 1
	if len(lines) > limit {
		lines = lines[:limit]
	}
	fmt.Fprint(term, strings.Join(lines, "\n"))
	term.Display()
}

// Table formats the thread table. Priorities are shown as application
// priorities, higher is more favored.
func Table(infos []threads.ThreadInfo, st threads.Stats) []string {
	lines := make([]string, 0, len(infos)+3)
	lines = append(lines,
		fmt.Sprintf("ticks %d  switches %d  live %d  run %s", st.Ticks, st.Switches, st.Live, st.Current),
		fmt.Sprintf("%-3s %-10s %3s %-9s %8s %8s %6s", "pid", "name", "pri", "state", "stack", "free", "runs"),
	)
	for _, ti := range infos {
		free := "-"
		if ti.StackFree >= 0 {
			free = humanize.IBytes(uint64(ti.StackFree))
		}
		state := ti.Label()
		if ti.ID == st.Current {
			state = "running"
		}
		lines = append(lines, fmt.Sprintf("%-3d %-10.10s %3d %-9.9s %8s %8s %6d",
			ti.ID, ti.Name, cthread.ApplicationPriority(ti.Priority), state,
			humanize.IBytes(uint64(ti.StackSize)), free, ti.Runs))
	}
	return lines
}
