package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConfirmation = "punchcard/confirmation/v1"
	DomainPayload      = "punchcard/payload/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfirmationToken computes the token for an applied instruction.
// The logical sequence number makes tokens unique even if two applied
// instructions were byte-identical.
func ConfirmationToken(in Instruction, seq int64) (string, error) {
	obj := map[string]any{
		"instruction": in.canonicalObject(),
		"seq":         seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConfirmationToken: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfirmation, canonical), nil
}

// PayloadID identifies a signed instruction independent of when it was
// applied. The executor uses it to refuse replays.
func PayloadID(in Instruction) (string, error) {
	canonical, err := in.SigningBytes()
	if err != nil {
		return "", fmt.Errorf("PayloadID: %w", err)
	}
	return hashWithDomain(DomainPayload, canonical), nil
}

// MustConfirmationToken is like ConfirmationToken but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConfirmationToken(in Instruction, seq int64) string {
	tok, err := ConfirmationToken(in, seq)
	if err != nil {
		panic(err)
	}
	return tok
}
