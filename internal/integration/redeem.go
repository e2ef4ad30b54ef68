package integration

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

// RedeemParams is the matched pair a redemption needs: the deposit VAA and the attested
// CCTP message it describes.
type RedeemParams struct {
	EncodedWormholeMessage []byte
	CircleBridgeMessage    []byte
	CircleAttestation      []byte
}

type RedeemReceipt struct {
	Token         vaaLib.Address
	Amount        *uint256.Int
	MintRecipient vaaLib.Address
	SourceChain   vaaLib.ChainID
	Sequence      uint64
	Digest        common.Hash
	Deposit       *wire.Deposit
	// Payload is the application data carried by the deposit.
	Payload []byte
}

// redemption is a fully verified redeem waiting for its ledger reservation.
type redemption struct {
	vaa     *vaaLib.VAA
	deposit *wire.Deposit
	message *wire.CCTPMessage
}

// RedeemTokensWithPayload verifies both attestations, checks that they describe the same
// transfer, mints to the mint recipient and consumes the message. It is all-or-nothing:
// a rejection or failed mint leaves the ledger untouched.
func (c *Chain) RedeemTokensWithPayload(ctx context.Context, caller vaaLib.Address, params RedeemParams) (*RedeemReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, err := c.verifyRedemption(caller, params)
	if err != nil {
		return nil, c.reject("redeem", err)
	}
	digest := r.vaa.SigningDigest()
	logger := c.logger.With(
		zap.Stringer("sourceChain", r.vaa.EmitterChain),
		zap.Uint64("sequence", r.vaa.Sequence),
		zap.Uint32("sourceDomain", r.message.SourceDomain),
		zap.Uint64("cctpNonce", r.message.Nonce),
	)
	logger.Debug("Redeem state", zap.String("state", "RedeemAttempted"), zap.String("digest", digest.Hex()))

	reservation, err := c.ledger.Reserve(ctx,
		ledger.VAAKey(digest),
		ledger.CCTPKey(r.message.SourceDomain, r.message.Nonce),
	)
	if err != nil {
		return nil, c.reject("redeem", err, zap.String("digest", digest.Hex()))
	}

	minted, err := c.custody.Mint(ctx, MintRequest{
		Caller:      c.cfg.Emitter,
		Message:     params.CircleBridgeMessage,
		Attestation: params.CircleAttestation,
	})
	if err != nil {
		if rerr := reservation.Release(ctx); rerr != nil {
			logger.Error("Failed to release reservation", zap.Error(rerr))
		}
		return nil, c.reject("redeem", fmt.Errorf("%w: %w", ErrMintFailed, err))
	}
	if err := reservation.Commit(ctx); err != nil {
		logger.Error("Minted but failed to commit consumption", zap.String("digest", digest.Hex()), zap.Error(err))
		return nil, c.reject("redeem", err)
	}

	logger.Info("Redeem state",
		zap.String("state", "Redeemed"),
		zap.String("amount", r.deposit.Amount.Dec()),
		zap.String("mintRecipient", r.deposit.MintRecipient.String()),
	)
	c.metrics.redemption(c.label, fmt.Sprintf("%d", uint16(r.vaa.EmitterChain)))

	return &RedeemReceipt{
		Token:         minted.Token,
		Amount:        minted.Amount,
		MintRecipient: r.deposit.MintRecipient,
		SourceChain:   r.vaa.EmitterChain,
		Sequence:      r.vaa.Sequence,
		Digest:        digest,
		Deposit:       r.deposit,
		Payload:       r.deposit.Payload,
	}, nil
}

func (c *Chain) verifyRedemption(caller vaaLib.Address, params RedeemParams) (*redemption, error) {
	v, err := wire.ParseVAA(params.EncodedWormholeMessage)
	if err != nil {
		return nil, err
	}
	if err := c.guardians.Verify(v); err != nil {
		return nil, err
	}

	emitter, ok := c.registry.LookupEmitter(v.EmitterChain)
	if !ok || emitter.Address != v.EmitterAddress {
		return nil, fmt.Errorf("%w: %s on chain %d", ErrUnknownEmitter, v.EmitterAddress, v.EmitterChain)
	}

	deposit, err := wire.DecodeDeposit(v.Payload)
	if err != nil {
		return nil, err
	}
	message, burn, err := wire.DecodeTokenBurnMessage(params.CircleBridgeMessage)
	if err != nil {
		return nil, err
	}
	if err := c.attesters.VerifyAttestation(wire.CCTPMessageHash(params.CircleBridgeMessage), params.CircleAttestation); err != nil {
		return nil, err
	}

	if err := checkPair(deposit, message, burn); err != nil {
		return nil, err
	}
	if deposit.SourceDomain != emitter.Domain {
		return nil, fmt.Errorf("%w: source domain %d, chain %d is registered with domain %d",
			ErrInvalidMessagePair, deposit.SourceDomain, v.EmitterChain, emitter.Domain)
	}
	if deposit.DestinationDomain != c.cfg.Domain {
		return nil, fmt.Errorf("%w: destination domain %d is not local domain %d",
			ErrInvalidMessagePair, deposit.DestinationDomain, c.cfg.Domain)
	}

	if message.DestinationCaller != (vaaLib.Address{}) && caller != deposit.MintRecipient {
		return nil, fmt.Errorf("%w: caller %s", ErrCallerMustBeMintRecipient, caller)
	}
	return &redemption{vaa: v, deposit: deposit, message: message}, nil
}

// checkPair confirms the deposit and the CCTP burn describe the same transfer.
func checkPair(deposit *wire.Deposit, message *wire.CCTPMessage, burn *wire.BurnMessage) error {
	switch {
	case deposit.SourceDomain != message.SourceDomain:
		return fmt.Errorf("%w: source domain %d != %d", ErrInvalidMessagePair, deposit.SourceDomain, message.SourceDomain)
	case deposit.DestinationDomain != message.DestinationDomain:
		return fmt.Errorf("%w: destination domain %d != %d", ErrInvalidMessagePair, deposit.DestinationDomain, message.DestinationDomain)
	case deposit.CCTPNonce != message.Nonce:
		return fmt.Errorf("%w: nonce %d != %d", ErrInvalidMessagePair, deposit.CCTPNonce, message.Nonce)
	case !deposit.Amount.Eq(burn.Amount):
		return fmt.Errorf("%w: amount %s != %s", ErrInvalidMessagePair, deposit.Amount.Dec(), burn.Amount.Dec())
	case deposit.MintRecipient != burn.MintRecipient:
		return fmt.Errorf("%w: mint recipient %s != %s", ErrInvalidMessagePair, deposit.MintRecipient, burn.MintRecipient)
	case deposit.TokenAddress != burn.BurnToken:
		return fmt.Errorf("%w: token %s != %s", ErrInvalidMessagePair, deposit.TokenAddress, burn.BurnToken)
	}
	return nil
}
