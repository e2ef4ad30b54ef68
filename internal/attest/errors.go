package attest

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientSignatures = errors.New("insufficient guardian signatures")
	ErrInvalidSignature       = errors.New("invalid guardian signature")
	ErrGuardianSetMismatch    = errors.New("vaa references a different guardian set")
	ErrUnknownGuardianSet     = errors.New("unknown guardian set")
	ErrGuardianSetExpired     = errors.New("guardian set expired")

	ErrInvalidAttestationLength = errors.New("invalid attestation length")
	ErrInvalidAttestation       = errors.New("invalid attester signature")
	ErrUnknownAttester          = errors.New("signer is not an enabled attester")
	ErrAttestersNotSorted       = errors.New("attester signatures not in increasing signer order")
	ErrInsufficientAttestations = errors.New("insufficient attester signatures")
)

// SignatureError names the offending position in a VAA's signature list.
// It matches ErrInvalidSignature with errors.Is.
type SignatureError struct {
	Position      int
	GuardianIndex uint8
	Reason        string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid guardian signature at position %d (guardian %d): %s", e.Position, e.GuardianIndex, e.Reason)
}

func (e *SignatureError) Is(target error) bool {
	return target == ErrInvalidSignature
}
