package ir

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
)

// SeedSize is the length of a seed's wire encoding in bytes.
const SeedSize = 16

// seedPattern is the only textual form accepted for a seed after trimming.
var seedPattern = regexp.MustCompile(`^-?\d+$`)

var (
	two128   = new(big.Int).Lsh(big.NewInt(1), 128)
	mask64   = new(big.Int).SetUint64(math.MaxUint64)
	minSeedB = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxSeedB = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// Seed is a signed 128-bit two's-complement integer identifying an employee.
// It is only ever used as input to address derivation.
//
// Hi holds the upper 64 bits (sign included), Lo the lower 64 bits.
type Seed struct {
	Hi int64
	Lo uint64
}

// MinSeed and MaxSeed are the bounds of the signed 128-bit range.
var (
	MinSeed = Seed{Hi: math.MinInt64, Lo: 0}
	MaxSeed = Seed{Hi: math.MaxInt64, Lo: math.MaxUint64}
)

// SeedFromInt64 widens v to a 128-bit seed with sign extension.
func SeedFromInt64(v int64) Seed {
	return Seed{Hi: v >> 63, Lo: uint64(v)}
}

// ParseSeed parses the caller-facing textual form of a seed.
//
// The input is trimmed and must match ^-?\d+$; values outside the signed
// 128-bit range are rejected. Every failure is a CodeMalformedSeed error.
func ParseSeed(text string) (Seed, error) {
	clean := strings.TrimSpace(text)
	if !seedPattern.MatchString(clean) {
		return Seed{}, NewError(CodeMalformedSeed, fmt.Sprintf("seed %q is not an integer literal", text))
	}

	n, ok := new(big.Int).SetString(clean, 10)
	if !ok {
		return Seed{}, NewError(CodeMalformedSeed, fmt.Sprintf("seed %q is not an integer literal", text))
	}
	if n.Cmp(minSeedB) < 0 || n.Cmp(maxSeedB) > 0 {
		return Seed{}, NewError(CodeMalformedSeed, fmt.Sprintf("seed %q does not fit in a signed 128-bit integer", clean))
	}

	return seedFromBig(n), nil
}

// MustParseSeed is like ParseSeed but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseSeed(text string) Seed {
	s, err := ParseSeed(text)
	if err != nil {
		panic(err)
	}
	return s
}

// seedFromBig converts an in-range integer to its two's-complement halves.
func seedFromBig(n *big.Int) Seed {
	u := new(big.Int).Set(n)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	lo := new(big.Int).And(u, mask64).Uint64()
	hi := new(big.Int).Rsh(u, 64).Uint64()
	return Seed{Hi: int64(hi), Lo: lo}
}

// Big returns the seed as an arbitrary-precision integer.
func (s Seed) Big() *big.Int {
	n := big.NewInt(s.Hi)
	n.Lsh(n, 64)
	return n.Add(n, new(big.Int).SetUint64(s.Lo))
}

// Bytes returns the 16-byte little-endian two's-complement encoding.
// This is the exact byte string fed to address derivation.
func (s Seed) Bytes() [SeedSize]byte {
	var b [SeedSize]byte
	binary.LittleEndian.PutUint64(b[0:8], s.Lo)
	binary.LittleEndian.PutUint64(b[8:16], uint64(s.Hi))
	return b
}

// SeedFromBytes decodes a 16-byte little-endian two's-complement seed.
func SeedFromBytes(b [SeedSize]byte) Seed {
	return Seed{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: int64(binary.LittleEndian.Uint64(b[8:16])),
	}
}

// String renders the seed in decimal.
func (s Seed) String() string {
	return s.Big().String()
}

// MarshalText encodes the seed as a decimal string.
// JSON numbers cannot carry 128 bits, so seeds always travel as strings.
func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a decimal seed.
func (s *Seed) UnmarshalText(text []byte) error {
	parsed, err := ParseSeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
