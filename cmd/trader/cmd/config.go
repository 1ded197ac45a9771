package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeledger/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage trader configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o trader.yaml
  trader config validate -f trader.yaml`,
	// subcommands read their own files
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings. The format follows
the extension: .yaml/.yml for YAML, anything else for JSON.

Example:
  trader config init -o trader.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check that a configuration file loads, applies environment overrides and
passes validation.

Example:
  trader config validate -f trader.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(w, "\nEdit the file and run with:")
	fmt.Fprintf(w, "  trader backtest --config %s -s AAPL\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configValidatePath, envFile)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(w, "  Account: %s (%.2f %s)\n", c.Account.ID, c.Account.Balance, c.Account.Currency)
	fmt.Fprintf(w, "  Risk: %.2f%% per trade, %d positions max, %.1f%% daily drawdown\n",
		c.Risk.RiskPerTrade*100, c.Risk.MaxPositions, c.Risk.MaxDailyDrawdown*100)
	fmt.Fprintf(w, "  Strategy: %s on %s bars\n", c.Backtest.Strategy, c.Backtest.Interval)
	fmt.Fprintf(w, "  Data: %s (%s)\n", c.Data.Dir, c.Data.Format)
	fmt.Fprintf(w, "  Journal: %s\n", c.Journal.Type)
	return nil
}
