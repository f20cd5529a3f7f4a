package cmd

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/service"
)

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		fee     string
		tax     string
		date    string
		name    string
		orderID string
	)

	cmd := &cobra.Command{
		Use:   "record <code> <side> <price> <shares>",
		Short: "Append a buy or sell to the ledger",
		Long: `Append one trade and print the updated position report.

Side is buy/sell (or 買/賣). Fee and tax are optional; when omitted the
report prices them with the configured fee schedule.

Example:
  ledger record 2330 buy 590 1000 --fee 841 --date 2024/01/05`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[2], err)
			}
			shares, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid shares %q: %w", args[3], err)
			}
			feeVal, err := optionalDecimal("fee", fee)
			if err != nil {
				return err
			}
			taxVal, err := optionalDecimal("tax", tax)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, svc, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			trade, err := svc.RecordTrade(ctx, service.RecordRequest{
				OrderID:    orderID,
				Date:       date,
				Side:       args[1],
				Instrument: args[0],
				Name:       name,
				Price:      price,
				Shares:     shares,
				Fee:        feeVal,
				Tax:        taxVal,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded %s %d %s @ %s on %s (order %s)\n",
				trade.Side, trade.Shares, trade.Instrument, trade.Price,
				trade.TradeDate.Format("2006/01/02"), trade.OrderID)
			return renderHistory(ctx, out, svc, trade.Instrument)
		},
	}

	cmd.Flags().StringVar(&fee, "fee", "", "brokerage fee charged")
	cmd.Flags().StringVar(&tax, "tax", "", "transaction tax charged")
	cmd.Flags().StringVar(&date, "date", "", "trade date, YYYY/MM/DD or YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&name, "name", "", "instrument name")
	cmd.Flags().StringVar(&orderID, "order-id", "", "broker order id (default random)")
	return cmd
}

func optionalDecimal(flag, value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid --%s %q: %w", flag, value, err)
	}
	return decimal.NewNullDecimal(d), nil
}
