package engine

import (
	"crypto/ed25519"

	"github.com/roach88/punchcard/internal/ir"
)

// verify checks everything about p that does not depend on record state
// and returns its payload id.
//
//   - structural validity (ir.Instruction.Validate)
//   - ed25519 signature by Instruction.Signer over the canonical bytes
//   - for initialize, that Address is exactly the seed's derived address
func (e *Engine) verify(p ir.SignedPayload) (string, error) {
	in := p.Instruction
	if err := in.Validate(); err != nil {
		return "", err
	}

	msg, err := in.SigningBytes()
	if err != nil {
		return "", ir.WrapError(ir.CodeInvalidInstruction, "instruction cannot be canonicalized", err)
	}
	if len(p.Signature) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(in.Signer[:]), msg, p.Signature) {
		return "", ir.Errorf(ir.CodeInvalidInstruction, "signature does not verify for signer %s", in.Signer).
			WithAddress(in.Address)
	}

	if in.Kind == ir.KindInitialize {
		want, err := e.deriver.Derive(*in.Seed)
		if err != nil {
			return "", ir.WrapError(ir.CodeInvalidInstruction, "seed cannot be derived", err)
		}
		if want != in.Address {
			return "", ir.Errorf(ir.CodeInvalidInstruction, "address does not match seed %s (want %s)", in.Seed, want).
				WithAddress(in.Address)
		}
	}

	id, err := ir.PayloadID(in)
	if err != nil {
		return "", ir.WrapError(ir.CodeInvalidInstruction, "instruction cannot be identified", err)
	}
	return id, nil
}
