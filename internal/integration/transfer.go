package integration

import (
	"context"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/registry"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

type TransferParams struct {
	Token         vaaLib.Address
	Amount        *uint256.Int
	TargetChain   vaaLib.ChainID
	MintRecipient vaaLib.Address
	// BatchID is passed to the message bus as the Wormhole nonce.
	BatchID uint32
	Payload []byte
}

// TransferReceipt carries both halves of a transfer as they left the source chain.
type TransferReceipt struct {
	Deposit        *wire.Deposit
	EncodedDeposit []byte
	CCTPMessage    []byte
	EmitterChain   vaaLib.ChainID
	Emitter        vaaLib.Address
	Sequence       uint64
}

// PublishedTransfer identifies the two attestations a transfer is waiting on.
type PublishedTransfer struct {
	EmitterChain vaaLib.ChainID
	Emitter      vaaLib.Address
	Sequence     uint64
	SourceDomain uint32
	Nonce        uint64
}

func (r *TransferReceipt) Published() PublishedTransfer {
	return PublishedTransfer{
		EmitterChain: r.EmitterChain,
		Emitter:      r.Emitter,
		Sequence:     r.Sequence,
		SourceDomain: r.Deposit.SourceDomain,
		Nonce:        r.Deposit.CCTPNonce,
	}
}

// MessageHash is the digest Circle attesters sign for this transfer's burn.
func (r *TransferReceipt) MessageHash() common.Hash {
	return wire.CCTPMessageHash(r.CCTPMessage)
}

// TransferTokensWithPayload burns caller's tokens through CCTP and publishes a deposit
// addressed to the target chain's registered emitter. Nothing is burned unless every
// precondition holds.
func (c *Chain) TransferTokensWithPayload(ctx context.Context, caller vaaLib.Address, params TransferParams) (*TransferReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.logger.With(
		zap.Stringer("targetChain", params.TargetChain),
		zap.String("token", params.Token.String()),
	)

	emitter, targetToken, err := c.checkTransfer(params)
	if err != nil {
		return nil, c.reject("transfer", err, zap.Stringer("targetChain", params.TargetChain))
	}
	logger.Debug("Transfer state", zap.String("state", "Idle"))

	burn, err := c.custody.Burn(ctx, BurnRequest{
		Sender:            caller,
		Token:             params.Token,
		Amount:            params.Amount,
		DestinationDomain: emitter.Domain,
		MintRecipient:     params.MintRecipient,
		DestinationCaller: emitter.Address,
	})
	if err != nil {
		return nil, c.reject("transfer", fmt.Errorf("%w: %w", ErrBurnFailed, err))
	}
	logger.Debug("Transfer state",
		zap.String("state", "BurnInitiated"),
		zap.Uint64("cctpNonce", burn.Nonce),
		zap.String("targetToken", targetToken.String()),
	)

	deposit := &wire.Deposit{
		TokenAddress:      params.Token,
		Amount:            new(uint256.Int).Set(params.Amount),
		SourceDomain:      c.cfg.Domain,
		DestinationDomain: emitter.Domain,
		CCTPNonce:         burn.Nonce,
		BurnSource:        caller,
		MintRecipient:     params.MintRecipient,
		Payload:           append([]byte(nil), params.Payload...),
	}
	encoded, err := deposit.Encode()
	if err != nil {
		return nil, c.reject("transfer", err)
	}

	from, sequence, err := c.bus.Publish(ctx, params.BatchID, encoded, c.finality)
	if err != nil {
		// The burn is already final on the custody side; the CCTP message can still be
		// redeemed directly by the mint recipient.
		return nil, c.reject("transfer", fmt.Errorf("%w: %w", ErrPublishFailed, err), zap.Uint64("cctpNonce", burn.Nonce))
	}
	logger.Info("Transfer state",
		zap.String("state", "MessagePublished"),
		zap.Uint64("sequence", sequence),
		zap.Uint64("cctpNonce", burn.Nonce),
		zap.String("amount", params.Amount.Dec()),
	)
	c.metrics.transfer(c.label, fmt.Sprintf("%d", uint16(params.TargetChain)))

	return &TransferReceipt{
		Deposit:        deposit,
		EncodedDeposit: encoded,
		CCTPMessage:    burn.Message,
		EmitterChain:   c.cfg.ChainID,
		Emitter:        from,
		Sequence:       sequence,
	}, nil
}

func (c *Chain) checkTransfer(params TransferParams) (emitter registry.Emitter, targetToken vaaLib.Address, err error) {
	if params.Amount == nil || params.Amount.IsZero() {
		return emitter, targetToken, ErrInvalidAmount
	}
	if params.MintRecipient == (vaaLib.Address{}) {
		return emitter, targetToken, ErrInvalidMintRecipient
	}
	if len(params.Payload) > math.MaxUint16 {
		return emitter, targetToken, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(params.Payload))
	}
	if !c.registry.IsAcceptedToken(params.Token) {
		return emitter, targetToken, fmt.Errorf("%w: %s", ErrTokenNotAccepted, params.Token)
	}
	emitter, ok := c.registry.LookupEmitter(params.TargetChain)
	if !ok {
		return emitter, targetToken, fmt.Errorf("%w: chain %d", ErrTargetContractNotRegistered, params.TargetChain)
	}
	targetToken, ok = c.registry.TargetToken(params.Token, params.TargetChain)
	if !ok {
		return emitter, targetToken, fmt.Errorf("%w: %s on chain %d", ErrTargetTokenNotRegistered, params.Token, params.TargetChain)
	}
	return emitter, targetToken, nil
}
