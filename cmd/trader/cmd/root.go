package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeledger/config"
	"github.com/rustyeddy/tradeledger/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A paper trading engine, backtester and trade journal",
	Long: `Trader simulates a trading account against live or recorded prices.

It provides tools for:
  - Backtesting signal providers over historical bars
  - Replaying a recorded quote feed through the paper engine
  - Querying the trade journal and performance metrics
  - Converting bar data between CSV and Parquet

Settings come from a YAML or JSON config file, a .env file and TRADER_*
environment variables, in increasing priority.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	envFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger = zap.NewNop()
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with TRADER_* overrides (default ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		c.Log.Format = logFormat
	}

	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	cfg, logger = c, l
	return nil
}
