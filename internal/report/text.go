// Package report renders position reports for terminals.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const dateLayout = "2006/01/02"

// NotAvailable is printed for undefined values such as ROI without investment
const NotAvailable = "N/A"

// WriteText renders the trade history table followed by the position summary
func WriteText(w io.Writer, r *models.PositionReport) error {
	title := r.Instrument
	if r.Name != "" {
		title += " " + r.Name
	}
	fmt.Fprintf(w, "%s (%s)\n", title, r.Policy)

	table := tablewriter.NewWriter(w)
	table.Header("Date", "Side", "Price", "Shares", "Amount", "Fee", "Tax", "Profit", "Held", "Avg Cost", "Status")

	var notes []string
	for i, row := range r.Rows {
		t := row.Trade
		if err := table.Append(
			t.TradeDate.Format(dateLayout),
			t.Side,
			t.Price.String(),
			fmt.Sprintf("%d", t.Shares),
			money(row.Amount),
			money(row.Fee),
			money(row.Tax),
			profitCell(row),
			fmt.Sprintf("%d", row.SharesHeld),
			nullable(row.AvgCost, 2),
			row.Status,
		); err != nil {
			return fmt.Errorf("failed to render row: %w", err)
		}
		if row.Skipped() {
			notes = append(notes, fmt.Sprintf("row %d skipped: %s", i+1, row.Reason))
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	for _, n := range notes {
		fmt.Fprintln(w, n)
	}

	s := r.Summary
	fmt.Fprintf(w, "Total investment: %s\n", money(s.TotalInvestment))
	fmt.Fprintf(w, "Total profit:     %s\n", money(s.TotalProfit))
	fmt.Fprintf(w, "ROI:              %s\n", percent(s.ROI))
	fmt.Fprintf(w, "Shares held:      %d\n", s.SharesHeld)
	if s.AvgCost.Valid {
		fmt.Fprintf(w, "Average cost:     %s\n", s.AvgCost.Decimal.StringFixed(2))
	}
	if s.Skipped > 0 {
		fmt.Fprintf(w, "Skipped rows:     %d\n", s.Skipped)
	}
	return nil
}

// WriteInstruments renders the instrument list
func WriteInstruments(w io.Writer, instruments []*models.Instrument) error {
	table := tablewriter.NewWriter(w)
	table.Header("Code", "Name", "Trades")
	for _, inst := range instruments {
		if err := table.Append(inst.Code, inst.Name, fmt.Sprintf("%d", inst.Trades)); err != nil {
			return fmt.Errorf("failed to render row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(0)
}

func profitCell(row models.TradeAnnotation) string {
	if row.Trade.IsBuy() || row.Skipped() {
		return "-"
	}
	return money(row.Profit)
}

func nullable(d decimal.NullDecimal, places int32) string {
	if !d.Valid {
		return NotAvailable
	}
	return d.Decimal.StringFixed(places)
}

func percent(d decimal.NullDecimal) string {
	if !d.Valid {
		return NotAvailable
	}
	return d.Decimal.StringFixed(2) + "%"
}
