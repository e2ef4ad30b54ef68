package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/registry"
	"github.com/wormhole-demo/circle-integration/internal/submitter"
	"github.com/wormhole-demo/circle-integration/internal/utils"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

const defaultProcessTimeout = 30 * time.Minute

type VAAProcessor interface {
	// ProcessVAA processes the given VAA and returns the transaction hash or an error.
	// An empty hash with a nil error means the VAA was skipped.
	ProcessVAA(ctx context.Context, vaaData VAAData) (string, error)
}

type RedeemProcessorConfig struct {
	// Emitters lists the Circle Integration contracts whose deposits are relayed, and the
	// domain the destination chain serves.
	Emitters *registry.Registry
	// Await bounds the wait for Circle's attestation.
	Await integration.AwaitConfig
	// Timeout bounds one VAA end to end. Zero selects defaultProcessTimeout.
	Timeout time.Duration
	Metrics *RelayerMetrics
}

// RedeemProcessor turns deposit VAAs destined for the local domain into redemptions.
type RedeemProcessor struct {
	config       RedeemProcessorConfig
	attestations integration.AttestationFetcher
	relayed      ledger.Ledger
	submitter    submitter.RedeemSubmitter
	logger       *zap.Logger
}

// NewRedeemProcessor wires a processor. relayed records VAAs this relayer has already
// redeemed; pass a Redis ledger to share that state across instances.
func NewRedeemProcessor(
	logger *zap.Logger,
	config RedeemProcessorConfig,
	attestations integration.AttestationFetcher,
	relayed ledger.Ledger,
	submitter submitter.RedeemSubmitter,
) *RedeemProcessor {
	if config.Timeout == 0 {
		config.Timeout = defaultProcessTimeout
	}
	if relayed == nil {
		relayed = ledger.NewMemory()
	}
	return &RedeemProcessor{
		config:       config,
		attestations: attestations,
		relayed:      relayed,
		submitter:    submitter,
		logger:       logger.With(zap.String("component", "RedeemProcessor")),
	}
}

func (p *RedeemProcessor) ProcessVAA(ctx context.Context, vaaData VAAData) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	logger := p.logger.With(
		zap.Uint16("emitterChain", vaaData.ChainID),
		zap.Uint64("sequence", vaaData.Sequence),
		zap.String("digest", vaaData.Digest.Hex()))

	emitter, ok := p.config.Emitters.LookupEmitter(vaaData.VAA.EmitterChain)
	if !ok || emitter.Address != vaaData.VAA.EmitterAddress {
		logger.Debug("Skipping VAA (not from a registered emitter)", zap.String("emitter", vaaData.EmitterHex))
		p.config.Metrics.record(vaaData.ChainID, outcomeSkipped)
		return "", nil
	}

	deposit, err := wire.DecodeDeposit(vaaData.VAA.Payload)
	if err != nil {
		logger.Debug("Skipping VAA (not a deposit)", zap.Error(err))
		p.config.Metrics.record(vaaData.ChainID, outcomeSkipped)
		return "", nil
	}
	logDeposit(logger, deposit)

	if deposit.DestinationDomain != p.config.Emitters.LocalDomain() {
		logger.Debug("Skipping VAA (not for local domain)",
			zap.Uint32("destinationDomain", deposit.DestinationDomain))
		p.config.Metrics.record(vaaData.ChainID, outcomeSkipped)
		return "", nil
	}

	reservation, err := p.relayed.Reserve(ctx, relayKey(vaaData))
	if errors.Is(err, ledger.ErrAlreadyConsumed) {
		logger.Debug("Skipping VAA (already relayed or in flight)")
		p.config.Metrics.record(vaaData.ChainID, outcomeSkipped)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reserve relay key: %w", err)
	}

	txHash, err := p.redeem(ctx, logger, vaaData, deposit)
	if err != nil && !submitter.IsAlreadyRedeemed(err) {
		if rerr := reservation.Release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Error("Failed to release relay key", zap.Error(rerr))
		}
		p.config.Metrics.record(vaaData.ChainID, outcomeFailed)
		if ctx.Err() != nil {
			logger.Warn("Redeem cancelled or timed out", zap.Error(ctx.Err()))
			return "", fmt.Errorf("redeem interrupted: %w", ctx.Err())
		}
		logger.Error("Failed to redeem", zap.Error(err))
		return "", fmt.Errorf("redeem failed: %w", err)
	}
	if err := reservation.Commit(context.WithoutCancel(ctx)); err != nil {
		logger.Error("Redeemed but failed to record relay key", zap.Error(err))
	}

	if txHash == "" {
		logger.Info("Transfer was already redeemed")
		p.config.Metrics.record(vaaData.ChainID, outcomeAlreadyRedeemed)
		return "", nil
	}
	logger.Info("Transfer redeemed", zap.String("txHash", txHash))
	p.config.Metrics.record(vaaData.ChainID, outcomeRedeemed)
	return txHash, nil
}

func (p *RedeemProcessor) redeem(ctx context.Context, logger *zap.Logger, vaaData VAAData, deposit *wire.Deposit) (string, error) {
	var attestation *integration.CircleAttestation
	err := utils.PollWithContext(ctx, p.config.Await,
		func(ctx context.Context) error {
			var err error
			attestation, err = p.attestations.FetchAttestation(ctx, deposit.SourceDomain, deposit.CCTPNonce)
			return err
		},
		func(err error) bool { return errors.Is(err, integration.ErrNotReady) },
		logger, "Circle attestation not ready",
	)
	if err != nil {
		return "", fmt.Errorf("await circle attestation: %w", err)
	}

	return p.submitter.SubmitRedeem(ctx, integration.RedeemParams{
		EncodedWormholeMessage: vaaData.RawBytes,
		CircleBridgeMessage:    attestation.Message,
		CircleAttestation:      attestation.Attestation,
	})
}
