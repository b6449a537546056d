// Package demo is the workload the firmware image runs on top of the scheduler.
//
// It exercises every primitive: a producer and a consumer share a ring guarded
// by a Mutex and counted by two Semaphores, two equal-priority workers depend
// on time slicing, a blinker drives the LED with Delay, and a button thread
// waits on thread flags set from the input pump.
package demo

import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog"

	"sparkrt/hal"
	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/cthread"
)

// StackSize is the stack given to each demo thread.
const StackSize = 1024

const ringSize = 4

// Flags understood by the button thread.
const (
	FlagPause threads.ThreadFlags = 1 << iota
	FlagReport
	FlagKey

	FlagsButton = FlagPause | FlagReport | FlagKey
)

// flagResume is set on the blinker when the button unpauses it.
const flagResume threads.ThreadFlags = 1 << 0

// Application priorities; higher is more favored.
const (
	prioWorker   = 1
	prioReport   = 2
	prioBlink    = 3
	prioProducer = 4
	prioConsumer = 5
	prioButton   = 6
)

type Config struct {
	// BlinkPeriod is the LED half period in ticks.
	BlinkPeriod uint32
	// ProducePeriod is the delay between two produced items.
	ProducePeriod uint32
	// Burst is the number of work units a worker does before it delays.
	Burst int
}

func DefaultConfig() Config {
	return Config{BlinkPeriod: 250, ProducePeriod: 20, Burst: 2000}
}

// Counters is the state shared by the demo threads.
type Counters struct {
	Produced uint64
	Consumed uint64
	Last     uint64
	Work     [2]uint64
	Presses  uint64
	Reports  uint64
	Paused   bool
}

type ring struct {
	buf  [ringSize]uint64
	head int
	n    int
}

func (r *ring) push(v uint64) {
	r.buf[(r.head+r.n)%ringSize] = v
	r.n++
}

func (r *ring) pop() uint64 {
	v := r.buf[r.head]
	r.head = (r.head + 1) % ringSize
	r.n--
	return v
}

type worker struct {
	d *Demo
	n int
}

// Demo owns the demo threads and their stacks.
type Demo struct {
	api *cthread.API
	s   *threads.Scheduler
	led hal.LED
	log zerolog.Logger
	cfg Config

	slots    *threads.Semaphore
	items    *threads.Semaphore
	ring     *threads.Mutex[ring]
	counters *threads.Mutex[Counters]

	blink  threads.ThreadID
	button threads.ThreadID
	report threads.ThreadID

	workers [2]worker
	stacks  [7][StackSize]byte
}

func New(api *cthread.API, led hal.LED, log zerolog.Logger, cfg Config) *Demo {
	def := DefaultConfig()
	if cfg.BlinkPeriod == 0 {
		cfg.BlinkPeriod = def.BlinkPeriod
	}
	if cfg.ProducePeriod == 0 {
		cfg.ProducePeriod = def.ProducePeriod
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	s := api.Scheduler()
	d := &Demo{
		api:      api,
		s:        s,
		led:      led,
		log:      log,
		cfg:      cfg,
		slots:    threads.NewSemaphore(s, ringSize),
		items:    threads.NewSemaphore(s, 0),
		ring:     threads.NewMutex(s, ring{}),
		counters: threads.NewMutex(s, Counters{}),
		blink:    cthread.InvalidPID,
		button:   cthread.InvalidPID,
		report:   cthread.InvalidPID,
	}
	for i := range d.workers {
		d.workers[i] = worker{d: d, n: i}
	}
	return d
}

// Start creates the demo threads. Call it before the scheduler starts or from
// a thread.
func (d *Demo) Start() error {
	self := unsafe.Pointer(d)
	specs := []struct {
		prio  uint8
		flags uint32
		fn    cthread.ThreadFunc
		arg   unsafe.Pointer
		name  string
		id    *threads.ThreadID
	}{
		{prioButton, 0, buttonEntry, self, "button", &d.button},
		{prioConsumer, 0, consumerEntry, self, "consumer", nil},
		{prioProducer, 0, producerEntry, self, "producer", nil},
		{prioBlink, cthread.ThreadCreateStacktest, blinkEntry, self, "blink", &d.blink},
		{prioReport, cthread.ThreadCreateSleeping, reportEntry, self, "report", &d.report},
		{prioWorker, 0, workerEntry, unsafe.Pointer(&d.workers[0]), "work-a", nil},
		{prioWorker, 0, workerEntry, unsafe.Pointer(&d.workers[1]), "work-b", nil},
	}
	for i, sp := range specs {
		id, err := d.api.ThreadCreate(d.stacks[i][:], StackSize, sp.prio, sp.flags|cthread.ThreadCreateWoutYield, sp.fn, sp.arg, sp.name)
		if err != nil {
			return fmt.Errorf("demo: create %s: %w", sp.name, err)
		}
		if sp.id != nil {
			*sp.id = id
		}
		d.log.Debug().Str("name", sp.name).Uint8("pid", uint8(id)).Uint8("prio", sp.prio).Msg("demo thread")
	}
	return nil
}

// Button returns the thread that receives FlagsButton.
func (d *Demo) Button() threads.ThreadID { return d.button }

// KeyFlags maps a key press to button flags. Releases map to nothing.
func KeyFlags(ev hal.KeyEvent) threads.ThreadFlags {
	if !ev.Press {
		return 0
	}
	switch {
	case ev.Code == hal.KeyF1 || ev.Rune == '1' || ev.Code == hal.KeySpace:
		return FlagPause
	case ev.Code == hal.KeyF2 || ev.Rune == '2':
		return FlagReport
	default:
		return FlagKey
	}
}

// Snapshot returns the counters. Thread context only.
func (d *Demo) Snapshot() (Counters, error) {
	var c Counters
	err := d.counters.Do(func(v *Counters) { c = *v })
	return c, err
}

// Lines formats the counters for the monitor. Thread context only.
func (d *Demo) Lines() []string {
	c, err := d.Snapshot()
	if err != nil {
		return []string{"demo: " + err.Error()}
	}
	led := "on"
	if c.Paused {
		led = "paused"
	}
	return []string{
		fmt.Sprintf("produced %d consumed %d last %d", c.Produced, c.Consumed, c.Last),
		fmt.Sprintf("work-a %d work-b %d", c.Work[0], c.Work[1]),
		fmt.Sprintf("presses %d reports %d led %s", c.Presses, c.Reports, led),
	}
}

func (d *Demo) update(fn func(c *Counters)) bool {
	if err := d.counters.Do(fn); err != nil {
		d.log.Error().Err(err).Msg("counters")
		return false
	}
	return true
}

func producerEntry(arg unsafe.Pointer) unsafe.Pointer {
	d := (*Demo)(arg)
	for seq := uint64(1); ; seq++ {
		if err := d.slots.Acquire(); err != nil {
			return nil
		}
		if err := d.ring.Do(func(r *ring) { r.push(seq) }); err != nil {
			return nil
		}
		d.items.Release()
		if !d.update(func(c *Counters) { c.Produced++ }) {
			return nil
		}
		if err := d.s.Delay(d.cfg.ProducePeriod); err != nil {
			return nil
		}
	}
}

func consumerEntry(arg unsafe.Pointer) unsafe.Pointer {
	d := (*Demo)(arg)
	for {
		if err := d.items.Acquire(); err != nil {
			return nil
		}
		var v uint64
		if err := d.ring.Do(func(r *ring) { v = r.pop() }); err != nil {
			return nil
		}
		d.slots.Release()
		if !d.update(func(c *Counters) {
			c.Consumed++
			c.Last = v
		}) {
			return nil
		}
	}
}

func workerEntry(arg unsafe.Pointer) unsafe.Pointer {
	w := (*worker)(arg)
	d := w.d
	for {
		for i := 0; i < d.cfg.Burst; i++ {
			if !d.update(func(c *Counters) { c.Work[w.n]++ }) {
				return nil
			}
			d.s.Preempt()
		}
		if err := d.s.Delay(1); err != nil {
			return nil
		}
	}
}

func blinkEntry(arg unsafe.Pointer) unsafe.Pointer {
	d := (*Demo)(arg)
	for {
		d.led.High()
		if err := d.s.Delay(d.cfg.BlinkPeriod); err != nil {
			return nil
		}
		d.led.Low()
		if err := d.s.Delay(d.cfg.BlinkPeriod); err != nil {
			return nil
		}

		d.s.ClearFlags(flagResume)
		var paused bool
		if !d.update(func(c *Counters) { paused = c.Paused }) {
			return nil
		}
		if paused {
			if _, err := d.s.WaitAny(flagResume); err != nil {
				return nil
			}
		}
	}
}

func buttonEntry(arg unsafe.Pointer) unsafe.Pointer {
	d := (*Demo)(arg)
	for {
		f, err := d.s.WaitAny(FlagsButton)
		if err != nil {
			return nil
		}
		var paused bool
		if !d.update(func(c *Counters) {
			c.Presses++
			if f&FlagPause != 0 {
				c.Paused = !c.Paused
			}
			paused = c.Paused
		}) {
			return nil
		}
		if f&FlagPause != 0 && !paused {
			_ = d.s.SetFlags(d.blink, flagResume)
		}
		if f&FlagReport != 0 && d.api.ThreadWakeup(d.report) != 1 {
			d.log.Debug().Msg("report busy")
		}
	}
}

// reportEntry logs the counters each time the button wakes it.
func reportEntry(arg unsafe.Pointer) unsafe.Pointer {
	d := (*Demo)(arg)
	for {
		c, err := d.Snapshot()
		if err != nil {
			return nil
		}
		d.update(func(c *Counters) { c.Reports++ })
		d.log.Info().
			Uint64("produced", c.Produced).
			Uint64("consumed", c.Consumed).
			Uint64("work_a", c.Work[0]).
			Uint64("work_b", c.Work[1]).
			Msg("demo report")
		if err := d.s.Sleep(); err != nil {
			return nil
		}
	}
}
