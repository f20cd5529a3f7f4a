// Package accounting replays a trade ledger with the weighted-average-cost
// method and reports realized profit per trade and for the whole position.
package accounting

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/models"
)

var (
	// ErrInsufficientShares is returned for a sell larger than the position
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrInvalidTrade is returned for rows with unusable fields
	ErrInvalidTrade = errors.New("invalid trade")
)

var hundred = decimal.NewFromInt(100)

// Accountant replays ledgers. It keeps no state between calls and is safe
// for concurrent use.
type Accountant struct {
	policy CostPolicy
	fees   FeeSchedule
	log    zerolog.Logger
	now    func() time.Time
}

// NewAccountant creates an accountant for a cost policy and fee schedule
func NewAccountant(policy CostPolicy, fees FeeSchedule, log zerolog.Logger) *Accountant {
	return &Accountant{
		policy: policy,
		fees:   fees,
		log:    log.With().Str("component", "accountant").Logger(),
		now:    time.Now,
	}
}

// Policy returns the cost policy in use
func (a *Accountant) Policy() CostPolicy {
	return a.policy
}

// Fees returns the fee schedule in use
func (a *Accountant) Fees() FeeSchedule {
	return a.fees
}

// position is the running state of one replay
type position struct {
	shares     int64
	basis      decimal.Decimal
	investment decimal.Decimal
	profit     decimal.Decimal
}

func (p *position) avgCost() decimal.NullDecimal {
	if p.shares == 0 {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.basis.Div(decimal.NewFromInt(p.shares)))
}

func (p *position) buy(shares int64, amount, fee decimal.Decimal, capitalizeFee bool) {
	p.shares += shares
	p.basis = p.basis.Add(amount)
	if capitalizeFee {
		p.basis = p.basis.Add(fee)
	}
	p.investment = p.investment.Add(amount).Add(fee)
}

// sell removes shares at average cost and returns the realized profit
func (p *position) sell(shares int64, proceeds, addOn decimal.Decimal) (decimal.Decimal, error) {
	if shares > p.shares {
		return decimal.Zero, fmt.Errorf("%w: selling %d, holding %d", ErrInsufficientShares, shares, p.shares)
	}

	soldCost := p.basis
	if shares < p.shares {
		soldCost = p.basis.Mul(decimal.NewFromInt(shares)).Div(decimal.NewFromInt(p.shares))
	}
	profit := proceeds.Sub(soldCost).Sub(addOn)

	p.shares -= shares
	if p.shares == 0 {
		p.basis = decimal.Zero
	} else {
		p.basis = p.basis.Sub(soldCost)
	}
	p.profit = p.profit.Add(profit)
	return profit, nil
}

// Replay runs the accounting pass over the trades of one instrument. Trades
// of other instruments are ignored; the rest are replayed in ascending date
// order, keeping input order for equal dates. An empty instrument replays
// every trade given.
func (a *Accountant) Replay(instrument string, trades []*models.Trade) *models.PositionReport {
	ledger := make([]*models.Trade, 0, len(trades))
	for _, t := range trades {
		if t == nil {
			continue
		}
		if instrument != "" && t.Instrument != instrument {
			continue
		}
		ledger = append(ledger, t)
	}
	sort.SliceStable(ledger, func(i, j int) bool {
		return ledger[i].TradeDate.Before(ledger[j].TradeDate)
	})

	report := &models.PositionReport{
		Instrument:  instrument,
		Policy:      a.policy.String(),
		Rows:        make([]models.TradeAnnotation, 0, len(ledger)),
		GeneratedAt: a.now(),
	}

	var pos position
	for _, t := range ledger {
		if report.Name == "" {
			report.Name = t.Name
		}
		if report.Instrument == "" {
			report.Instrument = t.Instrument
		}

		row := a.apply(&pos, t)
		if row.Skipped() {
			report.Summary.Skipped++
			a.log.Warn().
				Str("instrument", t.Instrument).
				Str("order_id", t.OrderID).
				Str("reason", row.Reason).
				Msg("Skipping trade")
		} else {
			report.Summary.Applied++
		}
		report.Rows = append(report.Rows, row)
	}

	report.Summary.TotalInvestment = pos.investment
	report.Summary.TotalProfit = pos.profit
	report.Summary.SharesHeld = pos.shares
	report.Summary.CostBasis = pos.basis
	report.Summary.AvgCost = pos.avgCost()
	if pos.investment.IsPositive() {
		roi := pos.profit.Div(pos.investment).Mul(hundred).Round(4)
		report.Summary.ROI = decimal.NewNullDecimal(roi)
	}
	return report
}

func (a *Accountant) apply(pos *position, t *models.Trade) models.TradeAnnotation {
	row := models.TradeAnnotation{
		Trade:  t,
		Status: models.StatusApplied,
	}

	if err := validateTrade(t); err != nil {
		row.Status = models.StatusSkipped
		row.Reason = err.Error()
		row.SharesHeld = pos.shares
		row.AvgCost = pos.avgCost()
		return row
	}

	row.Amount = t.Amount()
	row.Fee, row.Tax = a.fees.Charges(t)

	switch t.Side {
	case models.TradeTypeBuy:
		pos.buy(t.Shares, row.Amount, row.Fee, a.policy.capitalizesFees())
	case models.TradeTypeSell:
		addOn := decimal.Zero
		if a.policy == PolicyFlatBuyFee {
			addOn = a.fees.MinFee
		}
		proceeds := row.Amount.Sub(row.Fee).Sub(row.Tax)
		profit, err := pos.sell(t.Shares, proceeds, addOn)
		if err != nil {
			row.Status = models.StatusSkipped
			row.Reason = err.Error()
		}
		row.Profit = profit
	}

	row.SharesHeld = pos.shares
	row.AvgCost = pos.avgCost()
	return row
}

func validateTrade(t *models.Trade) error {
	if t.Side != models.TradeTypeBuy && t.Side != models.TradeTypeSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidTrade, t.Side)
	}
	if t.Shares <= 0 {
		return fmt.Errorf("%w: shares must be positive, got %d", ErrInvalidTrade, t.Shares)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("%w: negative price %s", ErrInvalidTrade, t.Price)
	}
	if t.Fee.Valid && t.Fee.Decimal.IsNegative() {
		return fmt.Errorf("%w: negative fee %s", ErrInvalidTrade, t.Fee.Decimal)
	}
	if t.Tax.Valid && t.Tax.Decimal.IsNegative() {
		return fmt.Errorf("%w: negative tax %s", ErrInvalidTrade, t.Tax.Decimal)
	}
	return nil
}

// ValidateTrade checks the fields the accounting pass relies on
func ValidateTrade(t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("%w: nil trade", ErrInvalidTrade)
	}
	if t.Instrument == "" {
		return fmt.Errorf("%w: instrument is required", ErrInvalidTrade)
	}
	return validateTrade(t)
}
