package attest

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const attestationSignatureLen = 65

// AttesterSet is the CCTP message transmitter's view of Circle's attesters.
type AttesterSet struct {
	Enabled []common.Address
	// Threshold is the minimum number of signatures an attestation must carry. Zero means one.
	Threshold int
}

func (a AttesterSet) threshold() int {
	if a.Threshold > 0 {
		return a.Threshold
	}
	return 1
}

func (a AttesterSet) isEnabled(signer common.Address) bool {
	for _, e := range a.Enabled {
		if e == signer {
			return true
		}
	}
	return false
}

// VerifyAttestation checks a concatenation of 65-byte signatures over messageHash. Signers must
// be enabled attesters in strictly increasing address order.
func (a AttesterSet) VerifyAttestation(messageHash common.Hash, attestation []byte) error {
	if len(attestation) == 0 || len(attestation)%attestationSignatureLen != 0 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAttestationLength, len(attestation))
	}
	count := len(attestation) / attestationSignatureLen
	if count < a.threshold() {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientAttestations, count, a.threshold())
	}

	var last common.Address
	for i := 0; i < count; i++ {
		sig := attestation[i*attestationSignatureLen : (i+1)*attestationSignatureLen]
		signer, err := recoverSigner(messageHash, sig)
		if err != nil {
			return fmt.Errorf("%w: signature %d: %v", ErrInvalidAttestation, i, err)
		}
		if i > 0 && bytes.Compare(signer[:], last[:]) <= 0 {
			return fmt.Errorf("%w: signature %d", ErrAttestersNotSorted, i)
		}
		if !a.isEnabled(signer) {
			return fmt.Errorf("%w: %s", ErrUnknownAttester, signer.Hex())
		}
		last = signer
	}
	return nil
}

// VerifyAttesterSignature checks a single signature against a list of known attester addresses.
func VerifyAttesterSignature(messageHash common.Hash, signature []byte, knownAttesters []common.Address) error {
	if len(signature) != attestationSignatureLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidAttestationLength, len(signature))
	}
	return AttesterSet{Enabled: knownAttesters, Threshold: 1}.VerifyAttestation(messageHash, signature)
}

// SignAttestation produces a signature in the format attesters publish (v in {27, 28}).
func SignAttestation(messageHash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(messageHash.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func recoverSigner(hash common.Hash, sig []byte) (common.Address, error) {
	normalized := make([]byte, attestationSignatureLen)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}
	pubKey, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
