package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Annotation status constants
const (
	StatusApplied = "APPLIED"
	StatusSkipped = "SKIPPED"
)

// TradeAnnotation is one ledger row after the accounting pass
type TradeAnnotation struct {
	Trade      *Trade              `json:"trade"`
	Amount     decimal.Decimal     `json:"amount"`
	Fee        decimal.Decimal     `json:"fee"`
	Tax        decimal.Decimal     `json:"tax"`
	Profit     decimal.Decimal     `json:"profit"`
	SharesHeld int64               `json:"shares_held"`
	AvgCost    decimal.NullDecimal `json:"avg_cost"`
	Status     string              `json:"status"`
	Reason     string              `json:"reason,omitempty"`
}

// Skipped reports whether the row was left out of the aggregates
func (a *TradeAnnotation) Skipped() bool {
	return a.Status == StatusSkipped
}

// PositionSummary holds the aggregates after replaying a ledger.
// ROI and AvgCost are null when undefined.
type PositionSummary struct {
	TotalInvestment decimal.Decimal     `json:"total_investment"`
	TotalProfit     decimal.Decimal     `json:"total_profit"`
	ROI             decimal.NullDecimal `json:"roi"`
	SharesHeld      int64               `json:"shares_held"`
	CostBasis       decimal.Decimal     `json:"cost_basis"`
	AvgCost         decimal.NullDecimal `json:"avg_cost"`
	Applied         int                 `json:"applied"`
	Skipped         int                 `json:"skipped"`
}

// PositionReport is the full result of an accounting pass for one instrument
type PositionReport struct {
	Instrument  string            `json:"instrument"`
	Name        string            `json:"name,omitempty"`
	Policy      string            `json:"policy"`
	Rows        []TradeAnnotation `json:"rows"`
	Summary     PositionSummary   `json:"summary"`
	GeneratedAt time.Time         `json:"generated_at"`
}
