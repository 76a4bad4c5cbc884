package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dotheat/internal/cell"
)

// Scenario defines a heatmap scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Grid is the view passed to LoadSession.
	Grid GridSpec `yaml:"grid"`

	// MaxCells bounds the local cache. Zero uses the session default.
	MaxCells int `yaml:"max_cells,omitempty"`

	// Local seeds the local cache before the flow starts.
	Local []CellValue `yaml:"local,omitempty"`

	// Remote seeds the remote counter service before the flow starts.
	Remote []CellValue `yaml:"remote,omitempty"`

	// Flow is the sequence of steps to drive the session through.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// GridSpec sizes the view.
type GridSpec struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// CellValue is a stored value for one cell. Raw, when set, is written
// verbatim instead of a serialized record.
type CellValue struct {
	Cell     string `yaml:"cell"`
	Count    int    `yaml:"count,omitempty"`
	Sequence int64  `yaml:"sequence,omitempty"`
	Raw      string `yaml:"raw,omitempty"`
}

// Step is one flow step. Exactly one field is set.
type Step struct {
	// Load runs LoadSession on the grid and waits for the remote sync.
	Load bool `yaml:"load,omitempty"`

	// Click records Times clicks (default 1) on a cell.
	Click string `yaml:"click,omitempty"`
	Times int    `yaml:"times,omitempty"`

	// Flush forces a batch flush.
	Flush bool `yaml:"flush,omitempty"`

	// Lifecycle delivers a page event: visible, hidden, or unload.
	Lifecycle string `yaml:"lifecycle,omitempty"`

	// Advance moves the manual clock, firing due timers.
	Advance time.Duration `yaml:"advance,omitempty"`

	// Remote switches the counter service "down" or "up".
	Remote string `yaml:"remote,omitempty"`

	// Probe runs a connectivity probe.
	Probe bool `yaml:"probe,omitempty"`

	// SetRemote overwrites a remote value, as another visitor would.
	SetRemote *CellValue `yaml:"set_remote,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "count": in-memory count of Cell
	// - "local": local cache record of Cell (Count, optional Sequence, or Absent)
	// - "remote": remote count of Cell (Count or Absent)
	// - "pending": number of writes awaiting flush
	// - "cached_cells": number of cells in the count map
	// - "available": remote breaker state
	// - "trace_count": number of trace events of type Event
	Type string `yaml:"type"`

	Cell      string `yaml:"cell,omitempty"`
	Count     int    `yaml:"count,omitempty"`
	Sequence  *int64 `yaml:"sequence,omitempty"`
	Absent    bool   `yaml:"absent,omitempty"`
	Available *bool  `yaml:"available,omitempty"`
	Event     string `yaml:"event,omitempty"`
}

// Assertion type constants.
const (
	AssertCount       = "count"
	AssertLocal       = "local"
	AssertRemote      = "remote"
	AssertPending     = "pending"
	AssertCachedCells = "cached_cells"
	AssertAvailable   = "available"
	AssertTraceCount  = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Grid.Rows < 1 || s.Grid.Cols < 1 {
		return errors.New("grid rows and cols must be at least 1")
	}
	if len(s.Flow) == 0 {
		return errors.New("flow must have at least one step")
	}

	for i, v := range s.Local {
		if _, err := cell.Parse(v.Cell); err != nil {
			return fmt.Errorf("local[%d]: %w", i, err)
		}
	}
	for i, v := range s.Remote {
		if _, err := cell.Parse(v.Cell); err != nil {
			return fmt.Errorf("remote[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	actions := 0
	for _, set := range []bool{
		step.Load,
		step.Click != "",
		step.Flush,
		step.Lifecycle != "",
		step.Advance != 0,
		step.Remote != "",
		step.Probe,
		step.SetRemote != nil,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("step must name exactly one action, found %d", actions)
	}

	switch {
	case step.Click != "":
		if _, err := cell.Parse(step.Click); err != nil {
			return err
		}
		if step.Times < 0 {
			return errors.New("times must not be negative")
		}
	case step.Lifecycle != "":
		if _, ok := lifecycleEvents[step.Lifecycle]; !ok {
			return fmt.Errorf("unknown lifecycle event %q", step.Lifecycle)
		}
	case step.Remote != "":
		if step.Remote != "up" && step.Remote != "down" {
			return fmt.Errorf("remote must be up or down, got %q", step.Remote)
		}
	case step.Advance < 0:
		return errors.New("advance must not be negative")
	case step.SetRemote != nil:
		if _, err := cell.Parse(step.SetRemote.Cell); err != nil {
			return err
		}
	}
	if step.Times != 0 && step.Click == "" {
		return errors.New("times only applies to click")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertCount, AssertLocal, AssertRemote:
		if _, err := cell.Parse(a.Cell); err != nil {
			return fmt.Errorf("%s: %w", a.Type, err)
		}
	case AssertPending, AssertCachedCells:
	case AssertAvailable:
		if a.Available == nil {
			return errors.New("available assertion requires available: true|false")
		}
	case AssertTraceCount:
		switch a.Event {
		case EventRepaint, EventRemotePut, EventRemoteDelete:
		default:
			return fmt.Errorf("trace_count: unknown event %q", a.Event)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
