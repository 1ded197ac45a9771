package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the trader CLI.`,
	// no config needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "trader version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "A paper trading engine, backtester and trade journal")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
