package internal

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

// relayKey identifies a VAA in the relayer's own ledger. It uses the signing digest so that
// re-observations carrying a different signature subset are still recognised.
func relayKey(vaaData VAAData) ledger.Key {
	return ledger.VAAKey(vaaData.Digest)
}

// logDeposit logs the deposit fields at debug level
func logDeposit(logger *zap.Logger, deposit *wire.Deposit) {
	logger.Debug("Deposit parsed",
		zap.String("token", deposit.TokenAddress.String()),
		zap.String("amount", deposit.Amount.Dec()),
		zap.Uint32("sourceDomain", deposit.SourceDomain),
		zap.Uint32("destinationDomain", deposit.DestinationDomain),
		zap.Uint64("cctpNonce", deposit.CCTPNonce),
		zap.String("burnSource", deposit.BurnSource.String()),
		zap.String("mintRecipient", deposit.MintRecipient.String()),
		zap.Int("payloadLength", len(deposit.Payload)),
		zap.String("payloadHex", fmt.Sprintf("0x%x", deposit.Payload)))
}
