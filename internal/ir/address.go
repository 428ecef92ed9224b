package ir

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// AddressSize is the length of a record address in bytes.
const AddressSize = 32

// Address identifies a persisted employee record. Its textual form is base58,
// the ledger's convention for account and program identifiers.
type Address [AddressSize]byte

// ParseAddress decodes a base58 address. Anything that does not decode to
// exactly 32 bytes is rejected.
func ParseAddress(text string) (Address, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(clean)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", clean, err)
	}
	if len(raw) != AddressSize {
		return Address{}, fmt.Errorf("invalid address %q: decoded to %d bytes, want %d", clean, len(raw), AddressSize)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(text string) Address {
	a, err := ParseAddress(text)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the base58 form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText encodes the address as base58.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a base58 address.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
