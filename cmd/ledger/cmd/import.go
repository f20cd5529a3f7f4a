package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/ledger"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Bulk-load a CSV ledger",
		Long: `Read a CSV ledger (localized or English header) and append its trades to
the store. Rows already imported are skipped by order id, so running the same
import twice is safe.

Example:
  ledger import stock_trades.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, svc, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			trades, rowErrs, err := ledger.NewReader(a.log).ReadTrades(f)
			if err != nil {
				return err
			}

			result, err := svc.Import(ctx, trades)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d trades (%d duplicates, %d invalid, %d unreadable rows)\n",
				result.Imported, result.Duplicates, result.Invalid, len(rowErrs))
			for _, re := range rowErrs {
				fmt.Fprintf(out, "  %s\n", re.Error())
			}
			return nil
		},
	}
	return cmd
}
