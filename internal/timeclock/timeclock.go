// Package timeclock holds the rules for how an employee record's on-duty
// state may change.
//
// The machine is cyclic with no terminal state:
//
//	OffShift --clock_in--> OnShift --clock_out--> OffShift
//	OnShift --intermittent_in--> OnBreak --intermittent_out--> OnShift
//	OnShift --lunch_in--> OnLunch --lunch_out--> OnShift
//
// Every other (state, transition) pair is rejected. Apply is pure: it never
// mutates its input and the caller supplies the timestamp.
package timeclock

import (
	"fmt"

	"github.com/roach88/punchcard/internal/ir"
)

// rule is one row of the transition table.
type rule struct {
	from  ir.State
	to    ir.State
	stamp func(r *ir.EmployeeRecord, now uint64)
}

var rules = map[ir.Transition]rule{
	ir.ClockIn: {
		from:  ir.OffShift,
		to:    ir.OnShift,
		stamp: func(r *ir.EmployeeRecord, now uint64) { r.ShiftStartClock = now },
	},
	ir.ClockOut: {
		from:  ir.OnShift,
		to:    ir.OffShift,
		stamp: func(r *ir.EmployeeRecord, now uint64) { r.ShiftEndClock = now },
	},
	ir.IntermittentIn: {
		from:  ir.OnShift,
		to:    ir.OnBreak,
		stamp: func(r *ir.EmployeeRecord, now uint64) { r.IntermittentStartClock = now },
	},
	ir.IntermittentOut: {
		from:  ir.OnBreak,
		to:    ir.OnShift,
		stamp: func(r *ir.EmployeeRecord, now uint64) { r.IntermittentEndClock = now },
	},
	ir.LunchIn: {
		from:  ir.OnShift,
		to:    ir.OnLunch,
		stamp: func(r *ir.EmployeeRecord, now uint64) { r.LunchStartClock = now },
	},
	ir.LunchOut: {
		from:  ir.OnLunch,
		to:    ir.OnShift,
		stamp: func(r *ir.EmployeeRecord, now uint64) { r.LunchEndClock = now },
	},
}

// NewRecord returns the record created by initialize: OffShift, inactive,
// every timestamp zero.
func NewRecord() ir.EmployeeRecord {
	return ir.EmployeeRecord{State: ir.OffShift}
}

// Apply validates t against rec's state and returns the resulting record.
//
// Rejections carry CodeAlreadyClockedIn when ClockIn is requested while not
// off shift, and CodeNotClockedIn for every other illegal pair. On rejection
// the zero record is returned alongside the error; rec is never modified.
func Apply(rec ir.EmployeeRecord, t ir.Transition, now uint64) (ir.EmployeeRecord, error) {
	r, ok := rules[t]
	if !ok {
		return ir.EmployeeRecord{}, ir.Errorf(ir.CodeInvalidInstruction, "unknown transition %d", int(t))
	}
	if !rec.State.Valid() {
		return ir.EmployeeRecord{}, fmt.Errorf("record in invalid state %d", int(rec.State))
	}
	if rec.State != r.from {
		return ir.EmployeeRecord{}, reject(rec.State, t)
	}

	next := rec
	r.stamp(&next, now)
	next.State = r.to
	next.Active = r.to != ir.OffShift
	return next, nil
}

func reject(from ir.State, t ir.Transition) *ir.Error {
	if t == ir.ClockIn {
		return ir.Errorf(ir.CodeAlreadyClockedIn, "cannot %s while %s", t, from)
	}
	return ir.Errorf(ir.CodeNotClockedIn, "cannot %s while %s", t, from)
}

// Allowed lists the transitions legal from s, in table order.
func Allowed(s ir.State) []ir.Transition {
	var out []ir.Transition
	for _, t := range ir.Transitions {
		if rules[t].from == s {
			out = append(out, t)
		}
	}
	return out
}

// Check reports whether t is legal from s without applying it.
func Check(s ir.State, t ir.Transition) error {
	r, ok := rules[t]
	if !ok {
		return ir.Errorf(ir.CodeInvalidInstruction, "unknown transition %d", int(t))
	}
	if s != r.from {
		return reject(s, t)
	}
	return nil
}

// Consistent reports whether rec's Active flag agrees with its State.
func Consistent(rec ir.EmployeeRecord) bool {
	return rec.State.Valid() && rec.Active == (rec.State != ir.OffShift)
}
