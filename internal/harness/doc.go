// Package harness runs punch-card conformance scenarios.
//
// A scenario is a YAML file naming a sequence of initialize and transition
// steps, the outcome each step must produce, and assertions over the
// resulting trace and records. Every run gets a fresh in-memory store, an
// executor whose wall clock advances a fixed step per applied instruction,
// a fixed signing key and sequential nonces, so traces are identical from
// run to run and can be compared against golden files.
//
// # Scenario Format
//
//	name: lunch_round_trip
//	description: "Lunch returns the employee to on-shift"
//	start: "2024-01-01T09:00:00Z"   # optional
//	step: 1m                        # optional
//	setup:
//	  - init: "42"
//	flow:
//	  - do: clock_in
//	    target: "42"
//	  - do: lunch_out
//	    target: "42"
//	    expect: NOT_CLOCKED_IN
//	  - do: clock_in
//	    target: "42"
//	    parallel: 4
//	    expect_counts: { ALREADY_CLOCKED_IN: 4 }
//	assertions:
//	  - type: final_state
//	    target: "42"
//	    state: on-shift
//	    active: true
//	    stamped: [shift_start_clock]
//	  - type: trace_count
//	    outcome: NOT_CLOCKED_IN
//	    count: 1
//
// Steps go through the real gateway, executor and store; nothing is
// simulated. expect defaults to "ok".
package harness
