// Package scenario replays scheduler scenarios written in YAML on the
// deterministic simulator.
//
// A scenario is a list of steps. Every step except create, start, tick and
// the ISR variants acts on behalf of the running thread, the way a thread body
// would. Priorities are application priorities: higher is more favored.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrExpectation is wrapped by every failed expect step.
var ErrExpectation = errors.New("expectation failed")

// Scenario is the decoded file.
type Scenario struct {
	Name   string `yaml:"name"`
	Config Config `yaml:"config"`
	Steps  []Step `yaml:"steps"`
}

// Config maps onto threads.Config.
type Config struct {
	TimeSlice   uint32 `yaml:"time_slice"`
	KeepZombies bool   `yaml:"keep_zombies"`
	Capacity    int    `yaml:"capacity"`
}

// Step is one operation. Op selects which of the other fields apply.
type Step struct {
	Op string `yaml:"op"`

	// create
	Name     string   `yaml:"name,omitempty"`
	Priority uint8    `yaml:"priority,omitempty"`
	Stack    int      `yaml:"stack,omitempty"`
	Flags    []string `yaml:"flags,omitempty"`

	// block, unblock, wakeup, reap, set_flags
	Thread string `yaml:"thread,omitempty"`

	// tick, delay; flag mask for set_flags and wait_any
	Count uint32 `yaml:"count,omitempty"`

	// exit value, or the expected value of reap
	Value string `yaml:"value,omitempty"`

	// Error is the expected error: invalid_argument, invalid_state,
	// resource_exhausted or no_thread.
	Error string `yaml:"error,omitempty"`

	// expect
	Current string             `yaml:"current,omitempty"`
	Ready   map[uint8][]string `yaml:"ready,omitempty"`
	States  map[string]string  `yaml:"states,omitempty"`
	Ticks   *uint64            `yaml:"ticks,omitempty"`
}

// Load decodes a scenario. Unknown fields are rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("scenario: decode: %w", err)
	}
	for i, st := range sc.Steps {
		if _, ok := ops[st.Op]; !ok {
			return nil, fmt.Errorf("scenario: step %d: unknown op %q", i+1, st.Op)
		}
	}
	return &sc, nil
}

// LoadFile reads and decodes path.
func LoadFile(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	sc, err := Load(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}
