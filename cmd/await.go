package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/clients"
	"github.com/wormhole-demo/circle-integration/internal/integration"
)

// awaitCmd waits for both attestations of a transfer and prints the redeem parameters
var awaitCmd = &cobra.Command{
	Use:   "await",
	Short: "Wait for a transfer's VAA and Circle attestation",
	Long: `Polls the guardian REST API for the deposit VAA and Circle's Iris API for the attestation of
the matching CCTP burn, then prints the three redeemTokensWithPayload arguments as hex.`,
	RunE: runAwait,
}

func init() {
	rootCmd.AddCommand(awaitCmd)

	awaitCmd.Flags().Uint16("emitter-chain", 0, "Wormhole chain of the source Circle Integration contract")
	awaitCmd.Flags().String("emitter-address", "", "Source Circle Integration contract (hex)")
	awaitCmd.Flags().Uint64("sequence", 0, "Wormhole sequence of the deposit")
	awaitCmd.Flags().Uint32("source-domain", 0, "CCTP domain of the source chain")
	awaitCmd.Flags().Uint64("nonce", 0, "CCTP nonce of the burn")
	awaitCmd.Flags().Duration("timeout", 30*time.Minute, "How long to wait for both attestations")

	awaitCmd.MarkFlagRequired("emitter-chain")
	awaitCmd.MarkFlagRequired("emitter-address")
	awaitCmd.MarkFlagRequired("sequence")
	awaitCmd.MarkFlagRequired("nonce")
}

func runAwait(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	emitterChain, _ := cmd.Flags().GetUint16("emitter-chain")
	emitterHex, _ := cmd.Flags().GetString("emitter-address")
	sequence, _ := cmd.Flags().GetUint64("sequence")
	sourceDomain, _ := cmd.Flags().GetUint32("source-domain")
	nonce, _ := cmd.Flags().GetUint64("nonce")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	emitter, err := vaaLib.StringToAddress(emitterHex)
	if err != nil {
		return fmt.Errorf("invalid emitter address: %w", err)
	}

	guardian := clients.NewGuardianClient(logger, viper.GetString("guardian_rpc_url"))
	circle := clients.NewCircleClient(logger, clients.CircleClientConfig{BaseURL: viper.GetString("iris_url")})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	params, err := integration.AwaitRedeemParams(ctx, guardian, circle, integration.PublishedTransfer{
		EmitterChain: vaaLib.ChainID(emitterChain),
		Emitter:      emitter,
		Sequence:     sequence,
		SourceDomain: sourceDomain,
		Nonce:        nonce,
	}, integration.AwaitConfig{Timeout: timeout}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("encodedWormholeMessage: %s\n", hexutil.Encode(params.EncodedWormholeMessage))
	fmt.Printf("circleBridgeMessage:    %s\n", hexutil.Encode(params.CircleBridgeMessage))
	fmt.Printf("circleAttestation:      %s\n", hexutil.Encode(params.CircleAttestation))
	return nil
}
