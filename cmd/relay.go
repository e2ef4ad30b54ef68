package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wormhole-demo/circle-integration/internal"
	"github.com/wormhole-demo/circle-integration/internal/clients"
	"github.com/wormhole-demo/circle-integration/internal/integration"
	"github.com/wormhole-demo/circle-integration/internal/ledger"
	"github.com/wormhole-demo/circle-integration/internal/submitter"
)

// relayCmd represents the command to relay Circle Integration transfers to an EVM chain
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Redeem Circle Integration transfers on an EVM chain",
	Long: `Listens for deposit VAAs from the registered Circle Integration emitters, waits for
Circle's attestation of the matching CCTP burn and redeems both on the destination contract.

Use --chain to pick the destination (sepolia, fuji, arbitrum, base) and --registered-emitters
to list the source contracts as chain:emitter:domain.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().String(
		"chain",
		"arbitrum",
		"Destination EVM chain (sepolia, fuji, arbitrum, base)")

	relayCmd.Flags().String(
		"evm-rpc-url",
		"",
		"RPC URL for EVM chain (defaults based on --chain)")

	relayCmd.Flags().String(
		"private-key",
		"",
		"Private key for EVM transactions (required)")

	relayCmd.Flags().String(
		"evm-target-contract",
		"",
		"Circle Integration contract on the destination chain (required)")

	relayCmd.Flags().StringSlice(
		"registered-emitters",
		nil,
		"Source Circle Integration contracts as chain:emitter:domain")

	relayCmd.Flags().Duration(
		"attestation-timeout",
		20*time.Minute,
		"How long to wait for Circle's attestation of a burn")

	relayCmd.Flags().String(
		"redis-url",
		"",
		"Redis URL for sharing relayed-VAA state across instances (optional)")

	relayCmd.Flags().String(
		"metrics-addr",
		"",
		"Address to serve Prometheus metrics on, e.g. :9090 (optional)")

	relayCmd.MarkFlagRequired("private-key")
	relayCmd.MarkFlagRequired("evm-target-contract")

	viper.BindPFlag("chain", relayCmd.Flags().Lookup("chain"))
	viper.BindPFlag("evm_rpc_url", relayCmd.Flags().Lookup("evm-rpc-url"))
	viper.BindPFlag("private_key", relayCmd.Flags().Lookup("private-key"))
	viper.BindPFlag("evm_target_contract", relayCmd.Flags().Lookup("evm-target-contract"))
	viper.BindPFlag("registered_emitters", relayCmd.Flags().Lookup("registered-emitters"))
	viper.BindPFlag("attestation_timeout", relayCmd.Flags().Lookup("attestation-timeout"))
	viper.BindPFlag("redis_url", relayCmd.Flags().Lookup("redis-url"))
	viper.BindPFlag("metrics_addr", relayCmd.Flags().Lookup("metrics-addr"))
}

type RelayConfig struct {
	ChainName          string        // Destination chain name
	SpyRPCHost         string        // Wormhole spy service endpoint
	IrisURL            string        // Circle attestation API
	EVMRPCURL          string        // RPC URL for EVM chain
	PrivateKey         string        // Private key for EVM transactions
	EVMTargetContract  string        // Circle Integration contract on EVM
	RegisteredEmitters []string      // chain:emitter:domain
	AttestationTimeout time.Duration // Wait bound for Circle's attestation
	RedisURL           string        // Optional shared relay ledger
	MetricsAddr        string        // Optional Prometheus listen address
}

func runRelay(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	chainName := viper.GetString("chain")
	chainConfig, ok := EVMChainConfigs[chainName]
	if !ok {
		return fmt.Errorf("unsupported chain: %s (valid: sepolia, fuji, arbitrum, base)", chainName)
	}

	logger.Info(fmt.Sprintf("Starting %s relayer", chainConfig.DisplayName))

	rpcURL := viper.GetString("evm_rpc_url")
	if rpcURL == "" {
		rpcURL = chainConfig.DefaultRPCURL
	}

	config := RelayConfig{
		ChainName:          chainName,
		SpyRPCHost:         viper.GetString("spy_rpc_host"),
		IrisURL:            viper.GetString("iris_url"),
		EVMRPCURL:          rpcURL,
		PrivateKey:         viper.GetString("private_key"),
		EVMTargetContract:  viper.GetString("evm_target_contract"),
		RegisteredEmitters: viper.GetStringSlice("registered_emitters"),
		AttestationTimeout: viper.GetDuration("attestation_timeout"),
		RedisURL:           viper.GetString("redis_url"),
		MetricsAddr:        viper.GetString("metrics_addr"),
	}

	if config.PrivateKey == "" {
		return fmt.Errorf("private key is required for EVM transactions")
	}
	if !common.IsHexAddress(config.EVMTargetContract) {
		return fmt.Errorf("invalid target contract: %q", config.EVMTargetContract)
	}

	reg, err := buildRegistry(chainConfig.ChainID, chainConfig.CCTPDomain, config.RegisteredEmitters)
	if err != nil {
		return err
	}
	if len(reg.Emitters()) == 0 {
		return fmt.Errorf("at least one --registered-emitters entry is required")
	}

	logger.Info("Configuration",
		zap.String("chain", chainConfig.DisplayName),
		zap.Stringer("chainID", chainConfig.ChainID),
		zap.Uint32("cctpDomain", chainConfig.CCTPDomain),
		zap.String("spyRPC", config.SpyRPCHost),
		zap.String("irisURL", config.IrisURL),
		zap.String("evmRPC", config.EVMRPCURL),
		zap.String("evmTarget", config.EVMTargetContract),
		zap.Strings("registeredEmitters", config.RegisteredEmitters),
		zap.Bool("redisLedger", config.RedisURL != ""))

	relayed, err := relayLedger(logger, config.RedisURL, chainConfig)
	if err != nil {
		return err
	}

	spyClient, err := clients.NewSpyClient(logger, config.SpyRPCHost)
	if err != nil {
		return fmt.Errorf("failed to create spy client: %v", err)
	}

	evmClient, err := clients.NewEVMClient(logger, config.EVMRPCURL, config.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to create EVM client: %v", err)
	}

	logger.Info("Connected to EVM",
		zap.String("address", evmClient.GetAddress().Hex()))

	evmSubmitter := submitter.NewEVMSubmitter(logger, common.HexToAddress(config.EVMTargetContract), evmClient)
	circleClient := clients.NewCircleClient(logger, clients.CircleClientConfig{BaseURL: config.IrisURL})

	processor := internal.NewRedeemProcessor(logger,
		internal.RedeemProcessorConfig{
			Emitters: reg,
			Await:    integration.AwaitConfig{Timeout: config.AttestationTimeout},
			Metrics:  internal.NewRelayerMetrics(prometheus.DefaultRegisterer),
		},
		circleClient, relayed, evmSubmitter)

	relayer := internal.NewRelayer(logger, spyClient, emitterFilters(reg), processor)
	defer relayer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if config.MetricsAddr != "" {
		serveMetrics(ctx, logger, config.MetricsAddr, prometheus.DefaultGatherer)
	}

	if err := relayer.Start(ctx); err != nil {
		return fmt.Errorf("relayer stopped with error: %v", err)
	}

	return nil
}

func relayLedger(logger *zap.Logger, redisURL string, chain EVMChainConfig) (ledger.Ledger, error) {
	if redisURL == "" {
		return ledger.NewMemory(), nil
	}
	l, err := ledger.NewRedis(logger, redisURL, fmt.Sprintf("relayer:%d", uint16(chain.ChainID)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return l, nil
}

// serveMetrics exposes gatherer on /metrics until ctx is done.
func serveMetrics(ctx context.Context, logger *zap.Logger, addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
