package integration

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

type GovernanceOptions struct {
	// NewImplementation must equal the address encoded in an UpgradeContract decree.
	NewImplementation vaaLib.Address

	expect wire.GovernanceAction
}

type GovernanceReceipt struct {
	Action      wire.GovernanceAction
	Decree      wire.Decree
	TargetChain vaaLib.ChainID
	Digest      common.Hash
}

// ApplyGovernance verifies a governance VAA and applies its decree. The VAA is consumed only
// if the decree applies cleanly.
func (c *Chain) ApplyGovernance(ctx context.Context, encodedVAA []byte, opts GovernanceOptions) (*GovernanceReceipt, error) {
	v, msg, decree, err := c.verifyGovernance(encodedVAA, opts.expect)
	if err != nil {
		return nil, c.reject("governance", err)
	}
	digest := v.SigningDigest()
	logger := c.logger.With(
		zap.Stringer("action", msg.Action),
		zap.Stringer("targetChain", msg.TargetChain),
		zap.String("digest", digest.Hex()),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	reservation, err := c.ledger.Reserve(ctx, ledger.VAAKey(digest))
	if err != nil {
		return nil, c.reject("governance", err, zap.Stringer("action", msg.Action))
	}
	if err := c.applyDecree(decree, opts); err != nil {
		if rerr := reservation.Release(ctx); rerr != nil {
			logger.Error("Failed to release reservation", zap.Error(rerr))
		}
		return nil, c.reject("governance", err, zap.Stringer("action", msg.Action))
	}
	if err := reservation.Commit(ctx); err != nil {
		logger.Error("Applied governance but failed to commit consumption", zap.Error(err))
		return nil, c.reject("governance", err)
	}

	logger.Info("Governance applied", zap.Any("decree", decree))
	c.metrics.governanceAction(c.label, msg.Action.String())

	return &GovernanceReceipt{
		Action:      msg.Action,
		Decree:      decree,
		TargetChain: msg.TargetChain,
		Digest:      digest,
	}, nil
}

func (c *Chain) verifyGovernance(encodedVAA []byte, expect wire.GovernanceAction) (*vaaLib.VAA, *wire.GovernanceMessage, wire.Decree, error) {
	v, err := wire.ParseVAA(encodedVAA)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := c.guardians.Verify(v); err != nil {
		return nil, nil, nil, err
	}
	if v.EmitterChain != c.cfg.GovernanceChain || v.EmitterAddress != c.cfg.GovernanceEmitter {
		return nil, nil, nil, fmt.Errorf("%w: %s on chain %d", ErrInvalidGovernanceEmitter, v.EmitterAddress, v.EmitterChain)
	}

	msg, err := wire.DecodeGovernanceMessage(v.Payload)
	if err != nil {
		return nil, nil, nil, err
	}
	if expect != 0 && msg.Action != expect {
		return nil, nil, nil, fmt.Errorf("%w: expected %s, got %s", wire.ErrInvalidGovernanceAction, expect, msg.Action)
	}
	decree, err := msg.Decree()
	if err != nil {
		return nil, nil, nil, err
	}

	switch {
	case msg.Action == wire.ActionUpgradeContract && msg.TargetChain != c.cfg.ChainID:
		return nil, nil, nil, fmt.Errorf("%w: upgrade targets chain %d", ErrGovernanceForAnotherChain, msg.TargetChain)
	case msg.TargetChain != vaaLib.ChainIDUnset && msg.TargetChain != c.cfg.ChainID:
		return nil, nil, nil, fmt.Errorf("%w: targets chain %d", ErrGovernanceForAnotherChain, msg.TargetChain)
	}
	return v, msg, decree, nil
}

// applyDecree performs exactly one mutation. Callers hold mu.
func (c *Chain) applyDecree(decree wire.Decree, opts GovernanceOptions) error {
	switch d := decree.(type) {
	case wire.UpdateWormholeFinality:
		if d.Finality == 0 {
			return ErrInvalidFinality
		}
		c.finality = d.Finality
	case wire.RegisterEmitterAndDomain:
		return c.registry.RegisterEmitterAndDomain(d.ForeignChain, d.ForeignEmitter, d.CCTPDomain)
	case wire.RegisterAcceptedToken:
		return c.registry.RegisterAcceptedToken(d.Token)
	case wire.RegisterTargetChainToken:
		return c.registry.RegisterTargetChainToken(d.SourceToken, d.TargetChain, d.TargetToken)
	case wire.UpgradeContract:
		if opts.NewImplementation != d.NewImplementation {
			return fmt.Errorf("%w: decree names %s, got %s", ErrImplementationMismatch, d.NewImplementation, opts.NewImplementation)
		}
		c.implementation = d.NewImplementation
	default:
		return fmt.Errorf("%w: %T", wire.ErrInvalidGovernanceAction, decree)
	}
	return nil
}

func (c *Chain) RegisterEmitterAndDomain(ctx context.Context, encodedVAA []byte) (*GovernanceReceipt, error) {
	return c.ApplyGovernance(ctx, encodedVAA, GovernanceOptions{expect: wire.ActionRegisterEmitterAndDomain})
}

func (c *Chain) RegisterAcceptedToken(ctx context.Context, encodedVAA []byte) (*GovernanceReceipt, error) {
	return c.ApplyGovernance(ctx, encodedVAA, GovernanceOptions{expect: wire.ActionRegisterAcceptedToken})
}

func (c *Chain) RegisterTargetChainToken(ctx context.Context, encodedVAA []byte) (*GovernanceReceipt, error) {
	return c.ApplyGovernance(ctx, encodedVAA, GovernanceOptions{expect: wire.ActionRegisterTargetChainToken})
}

func (c *Chain) UpdateWormholeFinality(ctx context.Context, encodedVAA []byte) (*GovernanceReceipt, error) {
	return c.ApplyGovernance(ctx, encodedVAA, GovernanceOptions{expect: wire.ActionUpdateWormholeFinality})
}

// UpgradeContract records newImplementation as the chain's implementation once the decree
// confirms it.
func (c *Chain) UpgradeContract(ctx context.Context, encodedVAA []byte, newImplementation vaaLib.Address) (*GovernanceReceipt, error) {
	return c.ApplyGovernance(ctx, encodedVAA, GovernanceOptions{
		NewImplementation: newImplementation,
		expect:            wire.ActionUpgradeContract,
	})
}
