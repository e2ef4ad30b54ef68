package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/circle-integration/internal/clients"
	"github.com/wormhole-demo/circle-integration/internal/wire"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode Circle Integration messages and program accounts",
}

var inspectVAACmd = &cobra.Command{
	Use:   "vaa <hex>",
	Short: "Decode a VAA and its deposit or governance payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hexutil.Decode(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		return describeVAA(cmd.OutOrStdout(), raw)
	},
}

var inspectCCTPCmd = &cobra.Command{
	Use:   "cctp <hex>",
	Short: "Decode a CCTP message and its burn body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := hexutil.Decode(args[0])
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		return describeCCTP(cmd.OutOrStdout(), raw)
	},
}

var inspectSolanaCmd = &cobra.Command{
	Use:   "solana",
	Short: "Derive Circle Integration PDAs and read registered emitters on Solana",
	RunE:  runInspectSolana,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectVAACmd, inspectCCTPCmd, inspectSolanaCmd)

	inspectSolanaCmd.Flags().String("program-id", "", "Circle Integration program (defaults to devnet)")
	inspectSolanaCmd.Flags().Uint16("chain", 0, "Foreign chain whose registered emitter to look up")
	inspectSolanaCmd.Flags().String("digest", "", "VAA digest whose consumed marker to look up (hex)")
	inspectSolanaCmd.Flags().String("solana-rpc-url", "", "Solana RPC URL; when empty only PDAs are printed")
}

func describeVAA(w io.Writer, raw []byte) error {
	v, err := wire.ParseVAAPermissive(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "version:           %d\n", v.Version)
	fmt.Fprintf(w, "guardian set:      %d\n", v.GuardianSetIndex)
	fmt.Fprintf(w, "signatures:        %d\n", len(v.Signatures))
	fmt.Fprintf(w, "timestamp:         %s\n", v.Timestamp.UTC())
	fmt.Fprintf(w, "nonce:             %d\n", v.Nonce)
	fmt.Fprintf(w, "emitter:           %s/%s\n", v.EmitterChain, v.EmitterAddress)
	fmt.Fprintf(w, "sequence:          %d\n", v.Sequence)
	fmt.Fprintf(w, "consistency level: %d\n", v.ConsistencyLevel)
	fmt.Fprintf(w, "digest:            %s\n", v.SigningDigest().Hex())

	if v.EmitterChain == vaaLib.GovernanceChain && v.EmitterAddress == vaaLib.GovernanceEmitter {
		msg, err := wire.DecodeGovernanceMessage(v.Payload)
		if err != nil {
			fmt.Fprintf(w, "payload:           %s (%v)\n", hexutil.Encode(v.Payload), err)
			return nil
		}
		decree, err := msg.Decree()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "governance:        %s target=%d\n", msg.Action, uint16(msg.TargetChain))
		fmt.Fprintf(w, "decree:            %+v\n", decree)
		return nil
	}

	deposit, err := wire.DecodeDeposit(v.Payload)
	if err != nil {
		fmt.Fprintf(w, "payload:           %s\n", hexutil.Encode(v.Payload))
		return nil
	}
	fmt.Fprintf(w, "deposit.token:     %s\n", deposit.TokenAddress)
	fmt.Fprintf(w, "deposit.amount:    %s\n", deposit.Amount.Dec())
	fmt.Fprintf(w, "deposit.domains:   %d -> %d\n", deposit.SourceDomain, deposit.DestinationDomain)
	fmt.Fprintf(w, "deposit.nonce:     %d\n", deposit.CCTPNonce)
	fmt.Fprintf(w, "deposit.burnSrc:   %s\n", deposit.BurnSource)
	fmt.Fprintf(w, "deposit.recipient: %s\n", deposit.MintRecipient)
	fmt.Fprintf(w, "deposit.payload:   %s\n", hexutil.Encode(deposit.Payload))
	return nil
}

func describeCCTP(w io.Writer, raw []byte) error {
	msg, err := wire.DecodeCCTPMessage(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "version:            %d\n", msg.Version)
	fmt.Fprintf(w, "domains:            %d -> %d\n", msg.SourceDomain, msg.DestinationDomain)
	fmt.Fprintf(w, "nonce:              %d\n", msg.Nonce)
	fmt.Fprintf(w, "sender:             %s\n", msg.Sender)
	fmt.Fprintf(w, "recipient:          %s\n", msg.Recipient)
	fmt.Fprintf(w, "destination caller: %s\n", msg.DestinationCaller)
	fmt.Fprintf(w, "hash:               %s\n", wire.CCTPMessageHash(raw).Hex())

	burn, err := wire.DecodeBurnMessage(msg.Body)
	if err != nil {
		fmt.Fprintf(w, "body:               %s\n", hexutil.Encode(msg.Body))
		return nil
	}
	fmt.Fprintf(w, "burn.token:         %s\n", burn.BurnToken)
	fmt.Fprintf(w, "burn.amount:        %s\n", burn.Amount.Dec())
	fmt.Fprintf(w, "burn.mintRecipient: %s\n", burn.MintRecipient)
	fmt.Fprintf(w, "burn.sender:        %s\n", burn.MessageSender)
	return nil
}

func runInspectSolana(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	w := cmd.OutOrStdout()

	programIDFlag, _ := cmd.Flags().GetString("program-id")
	chain, _ := cmd.Flags().GetUint16("chain")
	digestHex, _ := cmd.Flags().GetString("digest")
	rpcURL, _ := cmd.Flags().GetString("solana-rpc-url")

	client, err := clients.NewSolanaClient(logger, rpcURL, programIDFlag)
	if err != nil {
		return err
	}
	programID := client.GetProgramID()

	custodian, _, err := clients.DeriveCustodianPDA(programID)
	if err != nil {
		return err
	}
	custody, _, err := clients.DeriveCustodyTokenPDA(programID)
	if err != nil {
		return err
	}
	upgrade, _, err := clients.DeriveUpgradeAuthorityPDA(programID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "program:            %s\n", programID)
	fmt.Fprintf(w, "custodian:          %s\n", custodian)
	fmt.Fprintf(w, "custody token:      %s\n", custody)
	fmt.Fprintf(w, "upgrade authority:  %s\n", upgrade)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if chain != 0 {
		pda, _, err := clients.DeriveRegisteredEmitterPDA(programID, vaaLib.ChainID(chain))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "registered emitter: %s\n", pda)
		if rpcURL != "" {
			acct, err := client.FetchRegisteredEmitter(ctx, vaaLib.ChainID(chain))
			if err != nil {
				return err
			}
			e := acct.Emitter()
			fmt.Fprintf(w, "  chain:            %d\n", uint16(e.Chain))
			fmt.Fprintf(w, "  address:          %s\n", e.Address)
			fmt.Fprintf(w, "  cctp domain:      %d\n", e.Domain)
		}
	}

	if digestHex != "" {
		raw, err := hexutil.Decode(digestHex)
		if err != nil || len(raw) != common.HashLength {
			return fmt.Errorf("invalid digest %q", digestHex)
		}
		digest := common.BytesToHash(raw)
		pda, _, err := clients.DeriveConsumedVAAPDA(programID, digest)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "consumed vaa:       %s\n", pda)
		if rpcURL != "" {
			consumed, err := client.IsVAAConsumed(ctx, digest)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  consumed:         %t\n", consumed)
		}
	}
	return nil
}
