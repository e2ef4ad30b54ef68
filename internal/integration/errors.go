package integration

import (
	"errors"

	"github.com/wormhole-demo/circle-integration/internal/attest"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/registry"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

var (
	ErrInvalidAmount               = errors.New("amount must be > 0")
	ErrInvalidMintRecipient        = errors.New("invalid mint recipient")
	ErrPayloadTooLarge             = errors.New("payload too large")
	ErrTokenNotAccepted            = errors.New("token not accepted")
	ErrTargetContractNotRegistered = errors.New("target contract not registered")
	ErrTargetTokenNotRegistered    = errors.New("target token not registered")

	ErrUnknownEmitter            = errors.New("unknown emitter")
	ErrInvalidMessagePair        = errors.New("invalid message pair")
	ErrCallerMustBeMintRecipient = errors.New("caller must be mintRecipient")

	ErrInvalidGovernanceEmitter  = errors.New("invalid governance emitter")
	ErrGovernanceForAnotherChain = errors.New("governance for another chain")
	ErrImplementationMismatch    = errors.New("implementation mismatch")
	ErrInvalidFinality           = errors.New("invalid wormhole finality")

	ErrBurnFailed    = errors.New("failed to burn tokens")
	ErrMintFailed    = errors.New("failed to mint tokens")
	ErrPublishFailed = errors.New("failed to publish message")
)

// ErrorClass buckets a rejection by how a caller should treat it.
type ErrorClass string

const (
	// ClassMalformed is a structural decode failure.
	ClassMalformed ErrorClass = "malformed"
	// ClassPrecondition is a deterministic business-rule rejection.
	ClassPrecondition ErrorClass = "precondition"
	// ClassVerification is a failed signature, quorum or provenance check.
	ClassVerification ErrorClass = "verification"
	// ClassCollaborator is a failure reported by custody, the message bus or a backing store.
	ClassCollaborator ErrorClass = "collaborator"
)

var (
	malformedErrors = []error{
		wire.ErrMalformedMessage,
		wire.ErrAmountOverflow,
		wire.ErrInvalidGovernanceModule,
		wire.ErrInvalidGovernanceAction,
	}
	preconditionErrors = []error{
		ErrInvalidAmount,
		ErrInvalidMintRecipient,
		ErrPayloadTooLarge,
		ErrTokenNotAccepted,
		ErrTargetContractNotRegistered,
		ErrTargetTokenNotRegistered,
		ErrUnknownEmitter,
		ErrInvalidMessagePair,
		ErrCallerMustBeMintRecipient,
		ErrGovernanceForAnotherChain,
		ErrImplementationMismatch,
		ErrInvalidFinality,
		ledger.ErrAlreadyConsumed,
		registry.ErrAlreadyRegistered,
		registry.ErrInvalidForeignChain,
		registry.ErrInvalidForeignEmitter,
		registry.ErrInvalidCctpDomain,
		registry.ErrInvalidToken,
		registry.ErrSourceTokenNotAccepted,
	}
	verificationErrors = []error{
		ErrInvalidGovernanceEmitter,
		attest.ErrInsufficientSignatures,
		attest.ErrInvalidSignature,
		attest.ErrGuardianSetMismatch,
		attest.ErrUnknownGuardianSet,
		attest.ErrGuardianSetExpired,
		attest.ErrInvalidAttestationLength,
		attest.ErrInvalidAttestation,
		attest.ErrUnknownAttester,
		attest.ErrAttestersNotSorted,
		attest.ErrInsufficientAttestations,
	}
)

// Classify maps err onto the rejection taxonomy. Unrecognised errors come from collaborators.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	for _, class := range []struct {
		class ErrorClass
		errs  []error
	}{
		{ClassMalformed, malformedErrors},
		{ClassVerification, verificationErrors},
		{ClassPrecondition, preconditionErrors},
	} {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return class.class
			}
		}
	}
	return ClassCollaborator
}
