package cmd

import (
	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/report"
)

func newInstrumentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List the instruments in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, svc, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			instruments, err := svc.Instruments()
			if err != nil {
				return err
			}
			return report.WriteInstruments(cmd.OutOrStdout(), instruments)
		},
	}
}
