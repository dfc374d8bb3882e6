package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uhyunpark/hlclient/params"
	"github.com/uhyunpark/hlclient/pkg/util"
)

var (
	envFile string

	cfg    params.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hlctl",
	Short: "Sign and send trading actions to the venue",
	Long: `hlctl signs venue actions with the configured key and sends them to the
exchange endpoint. Configuration comes from the environment and an optional
.env file (HL_PRIVATE_KEY, HL_MAINNET, HL_BASE_URL, HL_VAULT_ADDRESS, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = params.LoadFromEnv(envFile)
		if err := cfg.Validate(); err != nil {
			return err
		}

		var err error
		if cfg.Log.File != "" {
			logger, err = util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
		} else {
			logger, err = util.NewLogger(cfg.Log.Level)
		}
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to a .env file (default: ./.env if present)")

	rootCmd.AddCommand(signOrderCmd, orderCmd, cancelCmd, leverageCmd, transferCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
