// Package wallet holds the ed25519 signing identity used to propose
// instructions. Keypair files use the Solana CLI format: a JSON array of 64
// byte values, the 32-byte private seed followed by the public key.
package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/punchcard/internal/ir"
)

// Keypair is an ed25519 signing identity. The private key never leaves it.
type Keypair struct {
	priv ed25519.PrivateKey
}

// Generate creates a keypair from crypto/rand.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// FromSeed derives a keypair from a 32-byte private seed. Deterministic;
// tests and scenario runs use it for reproducible signers.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keypair seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// MustFromSeed is like FromSeed but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromSeed(seed []byte) *Keypair {
	kp, err := FromSeed(seed)
	if err != nil {
		panic(err)
	}
	return kp
}

// LoadKeypair reads a Solana CLI keypair file.
func LoadKeypair(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}

	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keypair %s: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("parse keypair %s: want %d bytes, got %d", path, ed25519.PrivateKeySize, len(raw))
	}

	key := make([]byte, ed25519.PrivateKeySize)
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("parse keypair %s: byte %d out of range: %d", path, i, v)
		}
		key[i] = byte(v)
	}

	kp, err := FromSeed(key[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	if !kp.PublicKey().Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("parse keypair %s: public key does not match private seed", path)
	}
	return kp, nil
}

// SaveKeypair writes kp to path in Solana CLI format with 0600 permissions.
// Parent directories are created as needed.
func (kp *Keypair) SaveKeypair(path string) error {
	raw := make([]int, len(kp.priv))
	for i, b := range kp.priv {
		raw[i] = int(b)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	return nil
}

// PublicKey returns the public half.
func (kp *Keypair) PublicKey() ed25519.PublicKey {
	return kp.priv.Public().(ed25519.PublicKey)
}

// Address returns the public key as a ledger address.
func (kp *Keypair) Address() ir.Address {
	var a ir.Address
	copy(a[:], kp.PublicKey())
	return a
}

// Sign signs msg. It never fails for a well-formed keypair; the error
// return satisfies signers that can.
func (kp *Keypair) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(kp.priv, msg), nil
}
