package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal"
	"github.com/wormhole-demo/circle-integration/internal/devnet"
	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/submitter"
)

const (
	simulateSourceChain vaaLib.ChainID = 1
	simulateTargetChain vaaLib.ChainID = 2
)

// simulateCmd runs a full transfer between two in-process chains
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a transfer end to end on an in-process devnet",
	Long: `Starts two simulated chains (Wormhole chains 1 and 2 on CCTP domains 0 and 1) that share
a guardian set and a CCTP deployment, registers them with each other through governance,
transfers tokens with a payload from chain 1 and relays the deposit to chain 2.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().Uint64("amount", 69, "Amount of tokens to transfer")
	simulateCmd.Flags().String("payload", "All your base are belong to us.", "Payload to deliver with the tokens")
	simulateCmd.Flags().Int("guardians", 5, "Number of devnet guardians")
	simulateCmd.Flags().String("redis-url", "", "Back each chain's replay ledger with Redis (optional)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	amount, _ := cmd.Flags().GetUint64("amount")
	payload, _ := cmd.Flags().GetString("payload")
	guardians, _ := cmd.Flags().GetInt("guardians")
	redisURL, _ := cmd.Flags().GetString("redis-url")

	opts := devnet.Options{
		Guardians: guardians,
		Metrics:   integration.NewMetrics(prometheus.NewRegistry()),
		Logger:    logger,
	}
	if redisURL != "" {
		run := time.Now().UnixNano()
		opts.Ledger = func(chain vaaLib.ChainID) (ledger.Ledger, error) {
			return ledger.NewRedis(logger, redisURL, fmt.Sprintf("simulate:%d:%d", run, uint16(chain)))
		}
	}

	net, err := devnet.NewNetwork(opts,
		devnet.ChainSpec{ChainID: simulateSourceChain, Domain: 0},
		devnet.ChainSpec{ChainID: simulateTargetChain, Domain: 1})
	if err != nil {
		return fmt.Errorf("failed to start devnet: %w", err)
	}
	if err := net.RegisterAll(ctx); err != nil {
		return fmt.Errorf("failed to register devnet chains: %w", err)
	}

	sender := devnet.DeriveAddress("sender")
	recipient := devnet.DeriveAddress("recipient")
	source := net.Node(simulateSourceChain)
	target := net.Node(simulateTargetChain)
	net.CCTP.Fund(source.Domain, sender, uint256.NewInt(amount))

	receipt, err := source.Chain.TransferTokensWithPayload(ctx, sender, integration.TransferParams{
		Token:         source.Token,
		Amount:        uint256.NewInt(amount),
		TargetChain:   simulateTargetChain,
		MintRecipient: recipient,
		Payload:       []byte(payload),
	})
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	fmt.Printf("Transfer published\n")
	fmt.Printf("  emitter:      %d/%s\n", uint16(receipt.EmitterChain), receipt.Emitter)
	fmt.Printf("  sequence:     %d\n", receipt.Sequence)
	fmt.Printf("  cctp nonce:   %d (domain %d -> %d)\n", receipt.Deposit.CCTPNonce, receipt.Deposit.SourceDomain, receipt.Deposit.DestinationDomain)
	fmt.Printf("  message hash: %s\n", receipt.MessageHash().Hex())

	raw, err := net.Archive.FetchSignedVAA(ctx, receipt.EmitterChain, receipt.Emitter, receipt.Sequence)
	if err != nil {
		return fmt.Errorf("signed VAA not found: %w", err)
	}
	vaaData, err := internal.NewVAAData(raw)
	if err != nil {
		return err
	}

	local := submitter.NewLocalSubmitter(logger, target.Chain)
	processor := internal.NewRedeemProcessor(logger,
		internal.RedeemProcessorConfig{
			Emitters: target.Chain.Registry(),
			Await:    integration.AwaitConfig{InitialInterval: 10 * time.Millisecond, Timeout: 10 * time.Second},
		},
		net.CCTP, ledger.NewMemory(), local)

	digest, err := processor.ProcessVAA(ctx, vaaData)
	if err != nil {
		return fmt.Errorf("relay failed: %w", err)
	}

	redeemed, ok := local.Receipt(digest)
	if !ok {
		return fmt.Errorf("no redeem receipt for %s", digest)
	}

	fmt.Printf("Transfer redeemed on chain %d\n", uint16(simulateTargetChain))
	fmt.Printf("  vaa digest:   %s\n", digest)
	fmt.Printf("  recipient:    %s\n", recipient)
	fmt.Printf("  balance:      %s\n", net.CCTP.Balance(target.Domain, recipient).Dec())
	fmt.Printf("  amount:       %s\n", redeemed.Amount.Dec())
	fmt.Printf("  payload:      %s\n", hexutil.Encode(redeemed.Payload))

	logger.Debug("Simulation complete", zap.String("digest", digest))
	return nil
}
