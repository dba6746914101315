// Package cmd provides CLI commands for settle-books.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "settle-books",
	Short: "Reconcile marketplace settlements into journal entries",
	Long: `settle-books reconciles a month of marketplace orders and cost pools
against the marketplace settlement reports and books the result as
balanced journal entries.

It supports:
- Allocating fulfillment, storage, ad and inbound transport pools per order line
- Reconciling in-month and late settlements line by line
- Posting entries to a ledger API or to Beancount month files
- Skipping entries already posted, tracked in SQLite

Example:
  settle-books reconcile --period 2024-01
  settle-books reconcile --period 2024-01 --post --sink beancount
  settle-books stats`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statsCmd)
}
