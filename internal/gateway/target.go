package gateway

import (
	"strings"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/pda"
)

// Target is a resolved record reference. Seed is set when the caller named
// the record by seed.
type Target struct {
	Address ir.Address
	Seed    *ir.Seed
}

// ResolveTarget accepts a decimal seed or a base58 address.
//
// Text made only of an optional '-' and digits is always a seed, so an
// out-of-range literal fails with the seed error even when it would also
// decode as base58. Anything else that is not an address fails with
// CodeMalformedSeed.
func ResolveTarget(text string, d pda.Deriver) (Target, error) {
	clean := strings.TrimSpace(text)

	seed, seedErr := ir.ParseSeed(clean)
	if seedErr == nil {
		addr, err := d.Derive(seed)
		if err != nil {
			return Target{}, ir.WrapError(ir.CodeMalformedSeed, "seed has no viable address", err)
		}
		return Target{Address: addr, Seed: &seed}, nil
	}
	if looksNumeric(clean) {
		return Target{}, seedErr
	}

	if addr, err := ir.ParseAddress(clean); err == nil {
		return Target{Address: addr}, nil
	}
	return Target{}, ir.Errorf(ir.CodeMalformedSeed, "%q is neither a seed nor an address", clean)
}

func looksNumeric(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
