package testutil

import (
	"fmt"
	"sync"
)

// SequentialNonces hands out "<prefix>-1", "<prefix>-2", ... so scenario
// runs produce the same signed payloads every time.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialNonces struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialNonces creates a nonce source. An empty prefix means "nonce".
func NewSequentialNonces(prefix string) *SequentialNonces {
	if prefix == "" {
		prefix = "nonce"
	}
	return &SequentialNonces{prefix: prefix}
}

// Generate returns the next nonce.
//
// Implements gateway.NonceSource.
func (g *SequentialNonces) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
