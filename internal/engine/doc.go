// Package engine is the authoritative executor for punch-card records.
//
// Callers hand it signed instructions through Submit. Each instruction is
// verified (shape, signature, and for initialize the seed-to-address
// binding), routed to the shard that owns its record address, and applied
// there inside one store transaction.
//
// ARCHITECTURE:
//
// Sharded Single-Writer Loops:
// A record address always maps to the same shard, and each shard runs one
// goroutine that drains its FIFO queue. This gives:
//   - Serialized transitions per record (no lost updates)
//   - Parallel progress across unrelated records
//   - A single logical clock (seq) shared by all shards
//
// Apply Flow:
//  1. Submit verifies the payload and enqueues it to its shard
//  2. The shard loop dequeues it and stamps seq and wall-clock seconds
//  3. store.Apply checks the nonce, reads the record, runs timeclock.Apply,
//     writes the record and its confirmation, and commits
//  4. The outcome is sent back to the waiting Submit
//
// CRITICAL PATTERNS:
//
// Outcome Certainty:
// Rejections (CodeAlreadyClockedIn, CodeNotClockedIn, ...) leave the store
// untouched. A Submit whose ctx ends before the reply arrives returns
// CodeIndeterminate: the instruction was accepted and may still commit.
// Stopping the engine answers still-queued jobs with CodeChannelUnavailable;
// those never commit.
//
// Time:
// Timestamps come only from the engine's TimeSource, never from callers.
package engine
