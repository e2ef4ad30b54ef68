package integration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wormhole-demo/circle-integration/internal/utils"
)

// AwaitConfig bounds the wait for both attestations.
type AwaitConfig = utils.PollConfig

func isNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}

// AwaitRedeemParams polls the guardian network and the Circle attestation service concurrently
// until both have attested the transfer, ctx is done, or cfg.Timeout elapses.
func AwaitRedeemParams(
	ctx context.Context,
	vaas VAAFetcher,
	attestations AttestationFetcher,
	transfer PublishedTransfer,
	cfg AwaitConfig,
	logger *zap.Logger,
) (*RedeemParams, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("component", "AttestationAwaiter"),
		zap.Stringer("emitterChain", transfer.EmitterChain),
		zap.Uint64("sequence", transfer.Sequence),
		zap.Uint32("sourceDomain", transfer.SourceDomain),
		zap.Uint64("cctpNonce", transfer.Nonce),
	)
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		cfg.Timeout = 0
	}

	var (
		signedVAA []byte
		circle    *CircleAttestation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return utils.PollWithContext(gctx, cfg, func(ctx context.Context) error {
			raw, err := vaas.FetchSignedVAA(ctx, transfer.EmitterChain, transfer.Emitter, transfer.Sequence)
			if err != nil {
				return err
			}
			signedVAA = raw
			return nil
		}, isNotReady, logger, "Waiting for signed VAA")
	})
	g.Go(func() error {
		return utils.PollWithContext(gctx, cfg, func(ctx context.Context) error {
			att, err := attestations.FetchAttestation(ctx, transfer.SourceDomain, transfer.Nonce)
			if err != nil {
				return err
			}
			circle = att
			return nil
		}, isNotReady, logger, "Waiting for Circle attestation")
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("awaiting attestations: %w", err)
	}

	logger.Info("Both attestations available")
	return &RedeemParams{
		EncodedWormholeMessage: signedVAA,
		CircleBridgeMessage:    circle.Message,
		CircleAttestation:      circle.Attestation,
	}, nil
}
