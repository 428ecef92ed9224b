package harness

// TraceEvent records one flow step and what came of it.
type TraceEvent struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Target string `json:"target"`

	// Outcome is "ok" or an error code. Parallel steps set Outcomes
	// instead, sorted so the trace does not depend on scheduling.
	Outcome  string   `json:"outcome,omitempty"`
	Outcomes []string `json:"outcomes,omitempty"`

	// State and Active are re-fetched after the step, when the record
	// exists.
	State  string `json:"state,omitempty"`
	Active bool   `json:"active"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a trace event.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
