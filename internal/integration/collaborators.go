package integration

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ErrNotReady is returned by fetchers while an attestation is still pending.
var ErrNotReady = errors.New("attestation not ready")

// BurnRequest asks the CCTP token messenger to burn Amount of Token held by Sender.
type BurnRequest struct {
	Sender            vaaLib.Address
	Token             vaaLib.Address
	Amount            *uint256.Int
	DestinationDomain uint32
	MintRecipient     vaaLib.Address
	// DestinationCaller restricts who may receive the message on the destination domain.
	DestinationCaller vaaLib.Address
}

type BurnReceipt struct {
	Nonce   uint64
	Message []byte
}

// MintRequest submits an attested CCTP message to the local message transmitter.
type MintRequest struct {
	Caller      vaaLib.Address
	Message     []byte
	Attestation []byte
}

type MintReceipt struct {
	Token     vaaLib.Address
	Amount    *uint256.Int
	Recipient vaaLib.Address
}

// TokenCustody is the chain's CCTP burn/mint primitive.
type TokenCustody interface {
	Burn(ctx context.Context, req BurnRequest) (*BurnReceipt, error)
	Mint(ctx context.Context, req MintRequest) (*MintReceipt, error)
}

// MessageBus is the chain's Wormhole core bridge.
type MessageBus interface {
	Publish(ctx context.Context, nonce uint32, payload []byte, consistencyLevel uint8) (emitter vaaLib.Address, sequence uint64, err error)
}

// GuardianVerifier checks guardian quorum on a parsed VAA.
type GuardianVerifier interface {
	Verify(v *vaaLib.VAA) error
}

// AttestationVerifier checks Circle attester signatures over a CCTP message hash.
type AttestationVerifier interface {
	VerifyAttestation(messageHash common.Hash, attestation []byte) error
}

// VAAFetcher retrieves a signed VAA, returning ErrNotReady until guardians have signed it.
type VAAFetcher interface {
	FetchSignedVAA(ctx context.Context, chain vaaLib.ChainID, emitter vaaLib.Address, sequence uint64) ([]byte, error)
}

// CircleAttestation is a CCTP message with its attester signatures.
type CircleAttestation struct {
	Message     []byte
	Attestation []byte
}

// AttestationFetcher retrieves the Circle attestation for a burn, returning ErrNotReady while
// it is pending confirmations.
type AttestationFetcher interface {
	FetchAttestation(ctx context.Context, sourceDomain uint32, nonce uint64) (*CircleAttestation, error)
}
