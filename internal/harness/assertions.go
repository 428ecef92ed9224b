package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/punchcard/internal/gateway"
	"github.com/roach88/punchcard/internal/ir"
)

// clockFields maps YAML timestamp names to record accessors.
var clockFields = map[string]func(ir.EmployeeRecord) uint64{
	"shift_start_clock":        func(r ir.EmployeeRecord) uint64 { return r.ShiftStartClock },
	"shift_end_clock":          func(r ir.EmployeeRecord) uint64 { return r.ShiftEndClock },
	"intermittent_start_clock": func(r ir.EmployeeRecord) uint64 { return r.IntermittentStartClock },
	"intermittent_end_clock":   func(r ir.EmployeeRecord) uint64 { return r.IntermittentEndClock },
	"lunch_start_clock":        func(r ir.EmployeeRecord) uint64 { return r.LunchStartClock },
	"lunch_end_clock":          func(r ir.EmployeeRecord) uint64 { return r.LunchEndClock },
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", ev.Step, ev.Op, ev.Target, eventOutcome(ev))
		}
	}
	return buf.String()
}

func eventOutcome(ev TraceEvent) string {
	if len(ev.Outcomes) > 0 {
		return strings.Join(ev.Outcomes, ",")
	}
	return ev.Outcome
}

// outcomesOf flattens an event's single or parallel outcomes.
func outcomesOf(ev TraceEvent) []string {
	if len(ev.Outcomes) > 0 {
		return ev.Outcomes
	}
	return []string{ev.Outcome}
}

// assertTraceContains checks that some event has the op and, if given,
// the outcome.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Op != a.Op {
			continue
		}
		if a.Outcome == "" || slices.Contains(outcomesOf(ev), a.Outcome) {
			return nil
		}
	}

	want := a.Op
	if a.Outcome != "" {
		want += " -> " + a.Outcome
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that successful ops appear in the given order.
// They need not be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(a.Ops) {
			break
		}
		if ev.Op == a.Ops[next] && slices.Contains(outcomesOf(ev), OutcomeOK) {
			next++
		}
	}
	if next == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("successful ops in order: %v", a.Ops),
		Actual:   fmt.Sprintf("matched only %v", a.Ops[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks how many outcomes equal a.Outcome, optionally
// restricted to a.Op. Parallel steps contribute one outcome per submission.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if a.Op != "" && ev.Op != a.Op {
			continue
		}
		for _, o := range outcomesOf(ev) {
			if o == a.Outcome {
				count++
			}
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d outcomes %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState re-fetches the record and compares it.
func assertFinalState(ctx context.Context, gw *gateway.Gateway, a Assertion) error {
	view, err := gw.Fetch(ctx, a.Target)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record at %s", a.Target),
			Actual:   err.Error(),
		}
	}
	rec := view.Record

	var problems []string
	if rec.State.String() != a.State {
		problems = append(problems, fmt.Sprintf("state %s", rec.State))
	}
	if a.Active != nil && rec.Active != *a.Active {
		problems = append(problems, fmt.Sprintf("active %t", rec.Active))
	}
	for _, f := range a.Stamped {
		if clockFields[f](rec) == 0 {
			problems = append(problems, f+" unset")
		}
	}
	for _, f := range a.Unset {
		if v := clockFields[f](rec); v != 0 {
			problems = append(problems, fmt.Sprintf("%s = %d", f, v))
		}
	}
	for i := 1; i < len(a.Increasing); i++ {
		prev, cur := a.Increasing[i-1], a.Increasing[i]
		if p, c := clockFields[prev](rec), clockFields[cur](rec); p >= c {
			problems = append(problems, fmt.Sprintf("%s (%d) not before %s (%d)", prev, p, cur, c))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s in state %s (active=%v, stamped=%v, unset=%v)", a.Target, a.State, describeBool(a.Active), a.Stamped, a.Unset),
		Actual:   strings.Join(problems, "; "),
	}
}

func describeBool(b *bool) string {
	if b == nil {
		return "any"
	}
	return fmt.Sprintf("%t", *b)
}

// assertHistory checks the journal length of the record at a.Target.
func assertHistory(ctx context.Context, gw *gateway.Gateway, a Assertion) error {
	entries, err := gw.History(ctx, a.Target, 0)
	if err != nil {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("history of %s", a.Target),
			Actual:   err.Error(),
		}
	}
	if len(entries) != a.Count {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("%d journal entries for %s", a.Count, a.Target),
			Actual:   fmt.Sprintf("%d", len(entries)),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// gw is used to re-fetch records for final_state and history.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, gw *gateway.Gateway) []string {
	var msgs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState, AssertHistory:
			if gw == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a gateway", i, a.Type)
			} else if a.Type == AssertFinalState {
				err = assertFinalState(ctx, gw, a)
			} else {
				err = assertHistory(ctx, gw, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}
