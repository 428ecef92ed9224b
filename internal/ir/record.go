package ir

import "fmt"

// State is the explicit on-duty state of an employee record.
type State int

const (
	// OffShift is the initial state; no shift is in progress.
	OffShift State = iota
	// OnShift means the employee is clocked in and working.
	OnShift
	// OnBreak means the employee is on a short intermittent break.
	OnBreak
	// OnLunch means the employee is on a lunch break.
	OnLunch
)

var stateNames = map[State]string{
	OffShift: "off-shift",
	OnShift:  "on-shift",
	OnBreak:  "on-break",
	OnLunch:  "on-lunch",
}

// String returns the hyphenated state name used in output and scenarios.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Valid reports whether s is one of the four named states.
func (s State) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// ParseState parses a hyphenated state name.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", name)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EmployeeRecord is the persisted per-employee time clock record.
//
// State is authoritative. Active is true exactly when State is not OffShift.
// Timestamps are unix seconds assigned by the executor; 0 means unset.
type EmployeeRecord struct {
	State                  State  `json:"state"`
	Active                 bool   `json:"active"`
	ShiftStartClock        uint64 `json:"shift_start_clock"`
	ShiftEndClock          uint64 `json:"shift_end_clock"`
	IntermittentStartClock uint64 `json:"intermittent_start_clock"`
	IntermittentEndClock   uint64 `json:"intermittent_end_clock"`
	LunchStartClock        uint64 `json:"lunch_start_clock"`
	LunchEndClock          uint64 `json:"lunch_end_clock"`
}

// Clocks returns the six timestamps in persisted field order.
func (r EmployeeRecord) Clocks() [6]uint64 {
	return [6]uint64{
		r.ShiftStartClock,
		r.ShiftEndClock,
		r.IntermittentStartClock,
		r.IntermittentEndClock,
		r.LunchStartClock,
		r.LunchEndClock,
	}
}

// RecordView is the read-only projection handed to presentation code.
type RecordView struct {
	Address Address        `json:"address"`
	Record  EmployeeRecord `json:"record"`
}
