// Package ir provides the shared value types for punchcard.
//
// This package contains type definitions, the error taxonomy, canonical
// encoding and hashing. All other internal packages import ir; ir imports
// nothing internal.
//
// Key design constraints:
//   - Seeds are signed 128-bit integers and never travel as JSON numbers
//   - An employee record's State is the single source of truth; Active and
//     the six timestamps are audit fields
//   - Instructions carry no timestamps; the executor's clock assigns them
//   - All JSON tags use snake_case
package ir
