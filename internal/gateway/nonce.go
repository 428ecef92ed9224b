package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// NonceSource supplies the per-instruction nonce that makes every signed
// payload unique for replay protection.
type NonceSource interface {
	Generate() string
}

// UUIDv7Nonces generates time-sortable UUIDv7 nonces.
//
// Thread-safety: UUIDv7Nonces is stateless and safe for concurrent use.
type UUIDv7Nonces struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Nonces) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedNonces returns predetermined nonces in order.
//
// Thread-safety: FixedNonces is safe for concurrent use via internal mutex.
type FixedNonces struct {
	mu     sync.Mutex
	nonces []string
	idx    int
}

// NewFixedNonces creates a source that returns nonces in order.
//
// Example:
//
//	src := NewFixedNonces("n-1", "n-2")
//	src.Generate() // "n-1"
//	src.Generate() // "n-2"
//	src.Generate() // panic: all nonces exhausted
func NewFixedNonces(nonces ...string) *FixedNonces {
	return &FixedNonces{nonces: nonces}
}

// Generate returns the next predetermined nonce. It panics once all are
// consumed, which catches a test that signs more instructions than planned.
func (f *FixedNonces) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.idx >= len(f.nonces) {
		panic("FixedNonces: all nonces exhausted")
	}
	n := f.nonces[f.idx]
	f.idx++
	return n
}
