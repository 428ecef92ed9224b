// Package pda derives record addresses from seeds.
//
// Addresses are program-derived: SHA-256 over the seed bytes, a one-byte
// bump, the program id and a fixed marker, probing bumps from 255 down until
// the hash is not a valid ed25519 point. An off-curve address has no private
// key, so only the program can act on it.
//
// Everything here is pure. There is no storage, network or clock access and
// the functions are safe for any number of concurrent callers.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/roach88/punchcard/internal/ir"
)

const (
	// MaxSeeds is the most seed slices a single derivation accepts.
	MaxSeeds = 16

	// MaxSeedLength is the longest accepted seed slice in bytes.
	MaxSeedLength = 32

	// marker is appended after the program id before hashing.
	marker = "ProgramDerivedAddress"
)

// DefaultProgramID is the program namespace addresses are derived under
// unless configured otherwise.
var DefaultProgramID = ir.MustParseAddress("9FtgoQ4gZoCSj6zk2LyUDH1FCk3UBxLFhhJaiVJ6adpr")

var (
	// ErrOnCurve means the candidate hash is a valid public key.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")

	// ErrNoViableBump means every bump from 255 to 0 produced an on-curve hash.
	ErrNoViableBump = errors.New("no viable bump seed")
)

// CreateProgramAddress hashes seeds under programID without bump probing.
// It fails with ErrOnCurve when the hash is a valid curve point.
func CreateProgramAddress(seeds [][]byte, programID ir.Address) (ir.Address, error) {
	if len(seeds) > MaxSeeds {
		return ir.Address{}, fmt.Errorf("too many seeds: %d > %d", len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for i, s := range seeds {
		if len(s) > MaxSeedLength {
			return ir.Address{}, fmt.Errorf("seed %d too long: %d > %d bytes", i, len(s), MaxSeedLength)
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))

	var addr ir.Address
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return ir.Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress returns the first off-curve address found by appending
// a bump byte to seeds, trying 255 first and counting down.
func FindProgramAddress(seeds [][]byte, programID ir.Address) (ir.Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = byte(b)
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, byte(b), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return ir.Address{}, 0, err
		}
	}
	return ir.Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b ir.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

// Deriver maps seeds to record addresses under one program id.
// The zero value uses DefaultProgramID.
type Deriver struct {
	ProgramID ir.Address
}

// New returns a Deriver for programID.
func New(programID ir.Address) Deriver {
	return Deriver{ProgramID: programID}
}

func (d Deriver) programID() ir.Address {
	if d.ProgramID.IsZero() {
		return DefaultProgramID
	}
	return d.ProgramID
}

// Derive returns the record address for seed.
func (d Deriver) Derive(seed ir.Seed) (ir.Address, error) {
	addr, _, err := d.DeriveWithBump(seed)
	return addr, err
}

// DeriveWithBump returns the record address and the bump that produced it.
func (d Deriver) DeriveWithBump(seed ir.Seed) (ir.Address, uint8, error) {
	b := seed.Bytes()
	addr, bump, err := FindProgramAddress([][]byte{b[:]}, d.programID())
	if err != nil {
		return ir.Address{}, 0, fmt.Errorf("derive %s: %w", seed, err)
	}
	return addr, bump, nil
}

// Derive returns the record address for seed under DefaultProgramID.
func Derive(seed ir.Seed) (ir.Address, error) {
	return Deriver{}.Derive(seed)
}

// MustDerive is like Derive but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDerive(seed ir.Seed) ir.Address {
	addr, err := Derive(seed)
	if err != nil {
		panic(err)
	}
	return addr
}
