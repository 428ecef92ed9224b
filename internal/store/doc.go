// Package store provides SQLite-backed durable storage for employee records.
//
// Two tables:
//   - records: one row per address, holding the explicit state tag and the
//     57-byte persisted layout (see EncodeRecord)
//   - confirmations: append-only journal of applied instructions
//
// # Invariants
//
// Atomic apply:
//   - Apply reads, validates and writes inside one transaction
//   - A rejected step writes nothing; the record stays byte-for-byte unchanged
//
// Logical ordering:
//   - Journal ordering uses seq INTEGER (logical clock), never applied_at
//   - History queries ORDER BY seq ASC, token ASC COLLATE BINARY
//
// Replay refusal:
//   - UNIQUE(signer, nonce) means a signed payload is applied at most once
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
