package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/punchcard/internal/ir"
)

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the RFC 3339 instant of the first applied instruction.
	// Empty means testutil.DefaultEpoch.
	Start string `yaml:"start,omitempty"`

	// Step is how far the executor clock advances per applied instruction,
	// as a Go duration. Empty means one minute.
	Step string `yaml:"step,omitempty"`

	// Shards overrides the executor shard count.
	Shards int `yaml:"shards,omitempty"`

	// Setup steps must succeed and are not traced.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and records.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one initialize or transition request.
type Step struct {
	// Init is a seed to initialize. Mutually exclusive with Do.
	Init string `yaml:"init,omitempty"`

	// Do is a transition wire name such as "clock_in".
	Do string `yaml:"do,omitempty"`

	// Target is the seed or base58 address Do applies to.
	Target string `yaml:"target,omitempty"`

	// Parallel submits the step this many times concurrently.
	Parallel int `yaml:"parallel,omitempty"`

	// Expect is "ok" (the default) or an error code.
	Expect string `yaml:"expect,omitempty"`

	// ExpectCounts maps outcomes to how many parallel submissions produced
	// them. Only valid with parallel > 1.
	ExpectCounts map[string]int `yaml:"expect_counts,omitempty"`
}

// Op returns "initialize" or the transition name.
func (s Step) Op() string {
	if s.Init != "" {
		return string(ir.KindInitialize)
	}
	return s.Do
}

// TargetText returns the text the step resolves: the seed for Init.
func (s Step) TargetText() string {
	if s.Init != "" {
		return s.Init
	}
	return s.Target
}

// Assertion validates trace or final record state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some event has Op (and Outcome, if given)
	// - "trace_order": successful ops occur in the order of Ops
	// - "trace_count": exactly Count outcomes equal Outcome (filtered by Op)
	// - "final_state": the record at Target has State, Active, Stamped,
	//   Unset and Increasing
	// - "history": the record at Target has Count journal entries
	Type string `yaml:"type"`

	Op      string   `yaml:"op,omitempty"`
	Ops     []string `yaml:"ops,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Count   int      `yaml:"count,omitempty"`

	Target  string   `yaml:"target,omitempty"`
	State   string   `yaml:"state,omitempty"`
	Active  *bool    `yaml:"active,omitempty"`
	Stamped []string `yaml:"stamped,omitempty"`
	Unset   []string `yaml:"unset,omitempty"`

	// Increasing lists timestamp fields that must be strictly increasing
	// in the given order.
	Increasing []string `yaml:"increasing,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertHistory       = "history"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if s.Step != "" {
		if d, err := time.ParseDuration(s.Step); err != nil || d < time.Second {
			return fmt.Errorf("step must be a duration of at least 1s, got %q", s.Step)
		}
	}
	if s.Shards < 0 {
		return fmt.Errorf("shards must be non-negative")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Parallel > 1 || (step.Expect != "" && step.Expect != OutcomeOK) {
			return fmt.Errorf("setup[%d]: setup steps must be single and succeed", i)
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

func validateStep(s Step) error {
	switch {
	case s.Init == "" && s.Do == "":
		return fmt.Errorf("one of init or do is required")
	case s.Init != "" && s.Do != "":
		return fmt.Errorf("init and do are mutually exclusive")
	case s.Init != "" && s.Target != "":
		return fmt.Errorf("init takes no target")
	case s.Do != "" && s.Target == "":
		return fmt.Errorf("do requires a target")
	}
	if s.Do != "" {
		if _, err := ir.ParseTransition(s.Do); err != nil {
			return err
		}
	}
	if s.Parallel < 0 {
		return fmt.Errorf("parallel must be non-negative")
	}
	if len(s.ExpectCounts) > 0 && s.Parallel < 2 {
		return fmt.Errorf("expect_counts requires parallel > 1")
	}
	if len(s.ExpectCounts) > 0 && s.Expect != "" {
		return fmt.Errorf("expect and expect_counts are mutually exclusive")
	}
	if len(s.ExpectCounts) > 0 {
		total := 0
		for _, n := range s.ExpectCounts {
			total += n
		}
		if total != s.Parallel {
			return fmt.Errorf("expect_counts add up to %d, want %d", total, s.Parallel)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("op is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("ops list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Outcome == "" {
			return fmt.Errorf("outcome is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertFinalState:
		if a.Target == "" {
			return fmt.Errorf("target is required for final_state")
		}
		if a.State == "" {
			return fmt.Errorf("state is required for final_state")
		}
		if _, err := ir.ParseState(a.State); err != nil {
			return err
		}
		fields := slices.Concat(a.Stamped, a.Unset, a.Increasing)
		for _, f := range fields {
			if _, ok := clockFields[f]; !ok {
				return fmt.Errorf("unknown timestamp field %q", f)
			}
		}
	case AssertHistory:
		if a.Target == "" {
			return fmt.Errorf("target is required for history")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for history")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
