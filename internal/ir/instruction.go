package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// InstructionKind separates the one-time initialize from state transitions.
type InstructionKind string

const (
	KindInitialize InstructionKind = "initialize"
	KindTransition InstructionKind = "transition"
)

// Instruction is the unit a caller proposes to the executor.
//
// It deliberately has no timestamp: the executor's clock assigns every
// timestamp, and DecodeSignedPayload rejects payloads that smuggle one in.
type Instruction struct {
	Kind       InstructionKind `json:"kind"`
	Address    Address         `json:"address"`
	Seed       *Seed           `json:"seed,omitempty"`
	Transition Transition      `json:"transition,omitempty"`
	Signer     Address         `json:"signer"`
	Nonce      string          `json:"nonce"`
}

// NewInitialize builds an initialize instruction for seed at addr.
func NewInitialize(seed Seed, addr Address, signer Address, nonce string) Instruction {
	return Instruction{Kind: KindInitialize, Address: addr, Seed: &seed, Signer: signer, Nonce: nonce}
}

// NewTransition builds a transition instruction against addr.
func NewTransition(addr Address, t Transition, signer Address, nonce string) Instruction {
	return Instruction{Kind: KindTransition, Address: addr, Transition: t, Signer: signer, Nonce: nonce}
}

// Validate checks structural well-formedness. It does not consult record
// state or verify signatures.
func (in Instruction) Validate() error {
	if in.Address.IsZero() {
		return NewError(CodeInvalidInstruction, "address is required")
	}
	if in.Signer.IsZero() {
		return NewError(CodeInvalidInstruction, "signer is required")
	}
	if in.Nonce == "" {
		return NewError(CodeInvalidInstruction, "nonce is required")
	}
	switch in.Kind {
	case KindInitialize:
		if in.Seed == nil {
			return NewError(CodeInvalidInstruction, "initialize requires a seed")
		}
		if in.Transition != 0 {
			return NewError(CodeInvalidInstruction, "initialize must not carry a transition")
		}
	case KindTransition:
		if !in.Transition.Valid() {
			return Errorf(CodeInvalidInstruction, "invalid transition %d", int(in.Transition))
		}
		if in.Seed != nil {
			return NewError(CodeInvalidInstruction, "transition must not carry a seed")
		}
	default:
		return Errorf(CodeInvalidInstruction, "unknown instruction kind %q", in.Kind)
	}
	return nil
}

// canonicalObject is the map form fed to MarshalCanonical.
func (in Instruction) canonicalObject() map[string]any {
	obj := map[string]any{
		"version": WireVersion,
		"kind":    string(in.Kind),
		"address": in.Address.String(),
		"signer":  in.Signer.String(),
		"nonce":   in.Nonce,
	}
	if in.Seed != nil {
		obj["seed"] = in.Seed.String()
	}
	if in.Transition != 0 {
		obj["transition"] = in.Transition.String()
	}
	return obj
}

// SigningBytes returns the canonical bytes a signer signs.
func (in Instruction) SigningBytes() ([]byte, error) {
	b, err := MarshalCanonical(in.canonicalObject())
	if err != nil {
		return nil, fmt.Errorf("SigningBytes: %w", err)
	}
	return b, nil
}

// SignedPayload is an instruction plus an ed25519 signature over its
// SigningBytes by Instruction.Signer.
type SignedPayload struct {
	Instruction Instruction `json:"instruction"`
	Signature   []byte      `json:"signature"`
}

// DecodeSignedPayload strictly decodes a JSON payload. Unknown fields,
// including any caller-supplied timestamp, are rejected.
func DecodeSignedPayload(data []byte) (SignedPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p SignedPayload
	if err := dec.Decode(&p); err != nil {
		return SignedPayload{}, WrapError(CodeInvalidInstruction, "malformed payload", err)
	}
	if dec.More() {
		return SignedPayload{}, NewError(CodeInvalidInstruction, "trailing data after payload")
	}
	return p, nil
}

// Confirmation is proof that an instruction was durably applied.
type Confirmation struct {
	Token      string          `json:"token"`
	Address    Address         `json:"address"`
	Kind       InstructionKind `json:"kind"`
	Transition Transition      `json:"transition,omitempty"`
	Seq        int64           `json:"seq"`
	AppliedAt  uint64          `json:"applied_at"`
}
