package submitter

import (
	"context"

	"github.com/wormhole-demo/circle-integration/internal/integration"
)

type RedeemSubmitter interface {
	// SubmitRedeem redeems a matched deposit VAA and CCTP message on the destination chain
	// and returns the transaction hash or an error
	SubmitRedeem(ctx context.Context, params integration.RedeemParams) (string, error)
}
