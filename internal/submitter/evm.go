package submitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

const submitTimeout = 60 * time.Second

// evmRedeemer is implemented by clients.EVMClient.
type evmRedeemer interface {
	GetAddress() common.Address
	IsMessageConsumed(ctx context.Context, contract common.Address, digest common.Hash) (bool, error)
	RedeemTokensWithPayload(ctx context.Context, contract common.Address, params integration.RedeemParams) (string, error)
}

// EVMSubmitter redeems transfers against a Circle Integration contract on an EVM chain
type EVMSubmitter struct {
	targetContract common.Address
	evmClient      evmRedeemer
	logger         *zap.Logger
}

// NewEVMSubmitter creates a new EVM submitter instance
func NewEVMSubmitter(logger *zap.Logger, targetContract common.Address, evmClient evmRedeemer) *EVMSubmitter {
	return &EVMSubmitter{
		targetContract: targetContract,
		evmClient:      evmClient,
		logger:         logger.With(zap.String("component", "EVMSubmitter")),
	}
}

// SubmitRedeem skips VAAs the contract has already consumed and otherwise sends the redeem transaction.
func (s *EVMSubmitter) SubmitRedeem(ctx context.Context, params integration.RedeemParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	vaa, err := wire.ParseVAA(params.EncodedWormholeMessage)
	if err != nil {
		return "", err
	}
	digest := vaa.SigningDigest()

	consumed, err := s.evmClient.IsMessageConsumed(ctx, s.targetContract, digest)
	if err != nil {
		return "", fmt.Errorf("failed to check consumed state: %w", err)
	}
	if consumed {
		s.logger.Info("VAA already redeemed on target contract",
			zap.String("digest", digest.Hex()),
			zap.String("targetContract", s.targetContract.Hex()))
		return "", ledger.ErrAlreadyConsumed
	}

	s.logger.Info("Submitting redeem to EVM",
		zap.String("digest", digest.Hex()),
		zap.Uint64("sequence", vaa.Sequence),
		zap.String("targetContract", s.targetContract.Hex()),
		zap.String("fromAddress", s.evmClient.GetAddress().Hex()))

	txHash, err := s.evmClient.RedeemTokensWithPayload(ctx, s.targetContract, params)
	if err != nil {
		return "", fmt.Errorf("failed to submit redeem to EVM: %w", err)
	}

	s.logger.Info("Redeem successfully submitted to EVM",
		zap.String("txHash", txHash),
		zap.String("targetContract", s.targetContract.Hex()))

	return txHash, nil
}

// IsAlreadyRedeemed reports whether a submit error means there is nothing left to do.
func IsAlreadyRedeemed(err error) bool {
	return errors.Is(err, ledger.ErrAlreadyConsumed)
}
