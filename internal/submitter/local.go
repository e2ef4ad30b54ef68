package submitter

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

// LocalSubmitter redeems directly against an in-process chain. It always calls as the
// deposit's mint recipient, so the caller-must-be-mint-recipient check never rejects a
// redemption submitted through it. Only use it against devnet chains.
type LocalSubmitter struct {
	chain  *integration.Chain
	logger *zap.Logger

	mu       sync.Mutex
	receipts map[string]*integration.RedeemReceipt
}

func NewLocalSubmitter(logger *zap.Logger, chain *integration.Chain) *LocalSubmitter {
	return &LocalSubmitter{
		chain:    chain,
		logger:   logger.With(zap.String("component", "LocalSubmitter"), zap.Stringer("chain", chain.ID())),
		receipts: make(map[string]*integration.RedeemReceipt),
	}
}

// SubmitRedeem returns the VAA digest in place of a transaction hash.
func (s *LocalSubmitter) SubmitRedeem(ctx context.Context, params integration.RedeemParams) (string, error) {
	vaa, err := wire.ParseVAA(params.EncodedWormholeMessage)
	if err != nil {
		return "", err
	}
	deposit, err := wire.DecodeDeposit(vaa.Payload)
	if err != nil {
		return "", err
	}

	receipt, err := s.chain.RedeemTokensWithPayload(ctx, deposit.MintRecipient, params)
	if err != nil {
		return "", err
	}

	s.logger.Info("Redeemed locally",
		zap.String("digest", receipt.Digest.Hex()),
		zap.String("amount", receipt.Amount.Dec()),
		zap.String("mintRecipient", receipt.MintRecipient.String()))

	digest := receipt.Digest.Hex()
	s.mu.Lock()
	s.receipts[digest] = receipt
	s.mu.Unlock()
	return digest, nil
}

// Receipt returns the receipt of a redemption this submitter completed, keyed by the digest
// SubmitRedeem returned.
func (s *LocalSubmitter) Receipt(digest string) (*integration.RedeemReceipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[digest]
	return r, ok
}
