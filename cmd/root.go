package cmd

import (
	"fmt"
	"os"
	"strings"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wormhole-demo/circle-integration/internal/clients"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "circle-integration",
	Short: "Wormhole Circle Integration: CCTP transfers with payloads",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"spy-rpc-host",
		"localhost:7073",
		"Wormhole spy service endpoint")

	rootCmd.PersistentFlags().String(
		"guardian-rpc-url",
		"https://api.testnet.wormholescan.io",
		"Guardian public REST endpoint for signed VAAs")

	rootCmd.PersistentFlags().String(
		"iris-url",
		clients.IrisSandboxURL,
		"Circle Iris attestation API")

	// Bind flags to viper for env variable support
	viper.BindPFlag("spy_rpc_host", rootCmd.PersistentFlags().Lookup("spy-rpc-host"))
	viper.BindPFlag("guardian_rpc_url", rootCmd.PersistentFlags().Lookup("guardian-rpc-url"))
	viper.BindPFlag("iris_url", rootCmd.PersistentFlags().Lookup("iris-url"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("circle_integration")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// bannerColours cycles per line; the final reset restores the terminal.
var bannerColours = []string{"\033[38;5;39m", "\033[38;5;38m", "\033[38;5;37m", "\033[38;5;36m"}

const banner = `
  ______ ______ _______ ______
 / ____// ____//_  __// __  /   Circle Integration
/ /    / /      / /  / /_/ /    Wormhole x CCTP
/ /___ / /___   / /  / ____/
\____/ \____/  /_/  /_/
`

func printBanner() {
	i := 0
	for _, line := range strings.Split(banner, "\n") {
		if line == "" {
			continue
		}
		fmt.Printf("%s%s\n", bannerColours[i%len(bannerColours)], line)
		i++
	}
	fmt.Println("\033[0m")
}

// loggerConfig maps --debug and --json onto a zap config.
func loggerConfig(debug, json bool) zap.Config {
	config := zap.NewProductionConfig()
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if json {
		config.Encoding = "json"
		return config
	}
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return config
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	logger, err := loggerConfig(debug, json).Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	zap.ReplaceGlobals(logger)
	return logger
}
