package ir

import "fmt"

// Transition is a requested state change on an employee record.
// The zero value is not a transition.
type Transition int

const (
	ClockIn Transition = iota + 1
	ClockOut
	IntermittentIn
	IntermittentOut
	LunchIn
	LunchOut
)

// Transitions lists every transition in table order.
var Transitions = []Transition{ClockIn, ClockOut, IntermittentIn, IntermittentOut, LunchIn, LunchOut}

var transitionNames = map[Transition]string{
	ClockIn:         "clock_in",
	ClockOut:        "clock_out",
	IntermittentIn:  "intermittent_in",
	IntermittentOut: "intermittent_out",
	LunchIn:         "lunch_in",
	LunchOut:        "lunch_out",
}

// String returns the stable wire name.
func (t Transition) String() string {
	if name, ok := transitionNames[t]; ok {
		return name
	}
	return fmt.Sprintf("transition(%d)", int(t))
}

// Valid reports whether t is one of the six transitions.
func (t Transition) Valid() bool {
	_, ok := transitionNames[t]
	return ok
}

// ParseTransition parses a wire name such as "lunch_in".
func ParseTransition(name string) (Transition, error) {
	for t, n := range transitionNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transition %q", name)
}

// MarshalText encodes the transition by wire name.
func (t Transition) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid transition %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a wire name.
func (t *Transition) UnmarshalText(text []byte) error {
	parsed, err := ParseTransition(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
