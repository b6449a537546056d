package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unsafe"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sparkrt/sparkos/threads"
	"sparkrt/sparkos/threads/archsim"
	"sparkrt/sparkos/threads/cthread"
)

const defaultStack = 512

// Switch is one context switch observed during a step.
type Switch struct {
	Step int    `yaml:"step" json:"step"`
	Op   string `yaml:"op" json:"op"`
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Name     string
	Switches []Switch
	Threads  []threads.ThreadInfo
	Stats    threads.Stats

	names map[threads.ThreadID]string
}

// NameOf returns the scenario name of id.
func (r *Result) NameOf(id threads.ThreadID) string {
	if id == threads.IdleID {
		return "idle"
	}
	if n, ok := r.names[id]; ok {
		return n
	}
	return id.String()
}

// StepError reports the failing step.
type StepError struct {
	Step int
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Op, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Option customizes Run.
type Option func(*runner)

// WithLogger sends step and scheduler events to l.
func WithLogger(l zerolog.Logger) Option {
	return func(r *runner) { r.log = l }
}

type runner struct {
	log   zerolog.Logger
	arch  *archsim.Arch
	s     *threads.Scheduler
	api   *cthread.API
	ids   map[string]threads.ThreadID
	names map[threads.ThreadID]string

	started  bool
	restores int
	res      *Result
}

// Run replays sc on a fresh simulated scheduler with invariant checking on.
// It stops at the first failing step and returns the partial result with a
// *StepError.
func Run(sc *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		log:   zerolog.Nop(),
		arch:  archsim.New(),
		ids:   map[string]threads.ThreadID{},
		names: map[threads.ThreadID]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.res = &Result{RunID: uuid.NewString(), Name: sc.Name, names: r.names}
	r.log = r.log.With().Str("run", r.res.RunID).Logger()

	r.s = threads.New(r.arch,
		threads.WithConfig(threads.Config{
			Capacity:        sc.Config.Capacity,
			TimeSlice:       sc.Config.TimeSlice,
			KeepZombies:     sc.Config.KeepZombies,
			CheckInvariants: true,
		}),
		threads.WithLogger(r.log),
	)
	r.api = cthread.New(r.s)

	var err error
	for i, st := range sc.Steps {
		if err = r.step(i+1, st); err != nil {
			break
		}
	}
	var ce *threads.CorruptionError
	if errors.As(err, &ce) && !r.s.Halted() {
		// The failed step still holds the mask.
		return r.res, err
	}
	r.res.Threads = r.s.Threads()
	r.res.Stats = r.s.Stats()
	return r.res, err
}

func (r *runner) step(n int, st Step) (err error) {
	defer func() {
		if v := recover(); v != nil {
			ce, ok := v.(*threads.CorruptionError)
			if !ok {
				panic(v)
			}
			err = &StepError{Step: n, Op: st.Op, Err: ce}
		}
	}()

	if !r.started && st.Op != "create" && st.Op != "start" {
		r.start()
	}
	r.log.Debug().Int("step", n).Str("op", st.Op).Msg("step")

	opErr := ops[st.Op](r, st)
	if errors.Is(opErr, threads.ErrWouldBlock) {
		opErr = nil
	}
	r.collectSwitches(n, st.Op)
	if err := matchError(opErr, st.Error); err != nil {
		return &StepError{Step: n, Op: st.Op, Err: err}
	}
	return nil
}

func (r *runner) start() {
	r.started = true
	r.s.Start()
}

func (r *runner) collectSwitches(n int, op string) {
	all := r.arch.Restores()
	from := threads.IdleID
	if r.restores > 0 {
		from = all[r.restores-1]
	}
	for _, to := range all[r.restores:] {
		r.res.Switches = append(r.res.Switches, Switch{Step: n, Op: op, From: r.res.NameOf(from), To: r.res.NameOf(to)})
		from = to
	}
	r.restores = len(all)
}

var errorKinds = map[string]error{
	"invalid_argument":   threads.ErrInvalidArgument,
	"invalid_state":      threads.ErrInvalidState,
	"resource_exhausted": threads.ErrResourceExhausted,
	"no_thread":          threads.ErrNoThread,
}

func matchError(got error, want string) error {
	if want == "" {
		return got
	}
	target, ok := errorKinds[want]
	if !ok {
		return fmt.Errorf("unknown error kind %q", want)
	}
	if got == nil {
		return fmt.Errorf("%w: no error, want %s", ErrExpectation, want)
	}
	if !errors.Is(got, target) {
		return fmt.Errorf("%w: error %v, want %s", ErrExpectation, got, want)
	}
	return nil
}

func (r *runner) thread(name string) (threads.ThreadID, error) {
	id, ok := r.ids[name]
	if !ok {
		return threads.IdleID, fmt.Errorf("unknown thread %q", name)
	}
	return id, nil
}

var createFlags = map[string]uint32{
	"sleeping":      cthread.ThreadCreateSleeping,
	"without_yield": cthread.ThreadCreateWoutYield,
	"stacktest":     cthread.ThreadCreateStacktest,
}

func body(unsafe.Pointer) unsafe.Pointer { return nil }

var ops map[string]func(*runner, Step) error

func init() {
	ops = map[string]func(*runner, Step) error{
		"start":  opStart,
		"create": opCreate,
		"yield": func(r *runner, _ Step) error {
			r.api.ThreadYield()
			return nil
		},
		"preempt": func(r *runner, _ Step) error {
			r.api.ThreadYieldHigher()
			return nil
		},
		"block":       withThread((*threads.Scheduler).Block),
		"unblock":     withThread((*threads.Scheduler).Unblock),
		"unblock_isr": withThread((*threads.Scheduler).UnblockISR),
		"sleep": func(r *runner, _ Step) error {
			return r.s.Sleep()
		},
		"wakeup": opWakeup,
		"delay": func(r *runner, st Step) error {
			return r.s.Delay(st.Count)
		},
		"tick": func(r *runner, st Step) error {
			n := st.Count
			if n == 0 {
				n = 1
			}
			for ; n > 0; n-- {
				r.s.Tick()
			}
			return nil
		},
		"set_flags": func(r *runner, st Step) error {
			id, err := r.thread(st.Thread)
			if err != nil {
				return err
			}
			return r.s.SetFlagsISR(id, threads.ThreadFlags(st.Count))
		},
		"wait_any": func(r *runner, st Step) error {
			_, err := r.s.WaitAny(threads.ThreadFlags(st.Count))
			return err
		},
		"exit": func(r *runner, st Step) error {
			return r.s.Exit(st.Value)
		},
		"exit_zombie": func(r *runner, st Step) error {
			return r.s.ExitZombie(st.Value)
		},
		"reap":   opReap,
		"expect": opExpect,
	}
}

func withThread(fn func(*threads.Scheduler, threads.ThreadID) error) func(*runner, Step) error {
	return func(r *runner, st Step) error {
		id, err := r.thread(st.Thread)
		if err != nil {
			return err
		}
		return fn(r.s, id)
	}
}

func opStart(r *runner, _ Step) error {
	if r.started {
		return fmt.Errorf("scheduler already started")
	}
	r.start()
	return nil
}

func opCreate(r *runner, st Step) error {
	if st.Name == "" {
		return fmt.Errorf("create needs a name")
	}
	var flags uint32
	for _, f := range st.Flags {
		v, ok := createFlags[f]
		if !ok {
			return fmt.Errorf("unknown create flag %q", f)
		}
		flags |= v
	}
	size := st.Stack
	if size == 0 {
		size = defaultStack
	}
	id, err := r.api.ThreadCreate(make([]byte, size), size, st.Priority, flags, body, nil, st.Name)
	if err != nil {
		return err
	}
	if old, ok := r.names[id]; ok && r.ids[old] == id {
		delete(r.ids, old)
	}
	r.ids[st.Name] = id
	r.names[id] = st.Name
	return nil
}

func opWakeup(r *runner, st Step) error {
	id, err := r.thread(st.Thread)
	if err != nil {
		return err
	}
	if r.api.ThreadWakeup(id) != 1 {
		return fmt.Errorf("wakeup %s: %w", st.Thread, threads.ErrInvalidState)
	}
	return nil
}

func opReap(r *runner, st Step) error {
	id, err := r.thread(st.Thread)
	if err != nil {
		return err
	}
	v, err := r.s.Reap(id)
	if err != nil {
		return err
	}
	if st.Value != "" && v != st.Value {
		return fmt.Errorf("%w: reap value %v, want %q", ErrExpectation, v, st.Value)
	}
	return nil
}

func opExpect(r *runner, st Step) error {
	var fails []string
	if st.Current != "" {
		if got := r.res.NameOf(r.s.Current()); got != st.Current {
			fails = append(fails, fmt.Sprintf("current %s, want %s", got, st.Current))
		}
	}
	prios := make([]int, 0, len(st.Ready))
	for p := range st.Ready {
		prios = append(prios, int(p))
	}
	sort.Ints(prios)
	for _, p := range prios {
		want := st.Ready[uint8(p)]
		if p >= cthread.SchedPrioLevels {
			fails = append(fails, fmt.Sprintf("priority %d out of range", p))
			continue
		}
		var got []string
		for _, id := range r.s.Ready(cthread.InternalPriority(uint8(p))) {
			got = append(got, r.res.NameOf(id))
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			fails = append(fails, fmt.Sprintf("ready[%d] %v, want %v", p, got, want))
		}
	}
	names := make([]string, 0, len(st.States))
	for n := range st.States {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if got := r.stateOf(n); got != st.States[n] {
			fails = append(fails, fmt.Sprintf("%s is %s, want %s", n, got, st.States[n]))
		}
	}
	if st.Ticks != nil {
		if got := r.s.Stats().Ticks; got != *st.Ticks {
			fails = append(fails, fmt.Sprintf("ticks %d, want %d", got, *st.Ticks))
		}
	}
	if len(fails) > 0 {
		return fmt.Errorf("%w: %s", ErrExpectation, strings.Join(fails, "; "))
	}
	return nil
}

// stateOf returns "running" for the current thread, "gone" for a released
// slot, and the thread listing label otherwise.
func (r *runner) stateOf(name string) string {
	id, ok := r.ids[name]
	if !ok {
		return "unknown"
	}
	if id == r.s.Current() {
		return "running"
	}
	if _, ok := r.s.Info(id); !ok {
		return "gone"
	}
	return r.api.ThreadGetStatus(id).String()
}
