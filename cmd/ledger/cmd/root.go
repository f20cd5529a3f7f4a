package cmd

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	ledgerFile string
	logLevel   string
}

// NewRootCmd builds the ledger command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Stock trade ledger with weighted-average-cost profit reports",
		Long: `Ledger records stock trades and reports realized profit per trade and
for the whole position using the weighted-average-cost method.

Trades live in PostgreSQL by default. Pass --file to work directly on a CSV
ledger instead, without any database, cache or broker.

Examples:
  ledger record 2330 buy 590 1000 --fee 841
  ledger history 2330 --file stock_trades.csv --watch
  ledger import stock_trades.csv
  ledger serve`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ledgerFile, "file", "f", "", "CSV ledger file (offline mode)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newHistoryCmd(opts),
		newRecordCmd(opts),
		newImportCmd(opts),
		newInstrumentsCmd(opts),
		newMigrateCmd(opts),
	)

	return cmd
}
