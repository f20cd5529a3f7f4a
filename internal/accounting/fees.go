package accounting

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// Default Taiwan brokerage charges
var (
	DefaultFeeRate = decimal.RequireFromString("0.001425")
	DefaultMinFee  = decimal.NewFromInt(20)
	DefaultTaxRate = decimal.RequireFromString("0.003")
)

// FeeSchedule prices brokerage fees and the securities transaction tax.
// Both are rounded to whole currency units.
type FeeSchedule struct {
	FeeRate decimal.Decimal
	MinFee  decimal.Decimal
	TaxRate decimal.Decimal
}

// DefaultFeeSchedule returns the standard schedule: 0.1425% fee with a
// 20 floor, 0.3% tax on sells.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		FeeRate: DefaultFeeRate,
		MinFee:  DefaultMinFee,
		TaxRate: DefaultTaxRate,
	}
}

// Validate rejects negative rates
func (f FeeSchedule) Validate() error {
	if f.FeeRate.IsNegative() {
		return fmt.Errorf("fee rate must not be negative: %s", f.FeeRate)
	}
	if f.MinFee.IsNegative() {
		return fmt.Errorf("minimum fee must not be negative: %s", f.MinFee)
	}
	if f.TaxRate.IsNegative() {
		return fmt.Errorf("tax rate must not be negative: %s", f.TaxRate)
	}
	return nil
}

// Fee returns max(MinFee, round(amount * FeeRate)).
func (f FeeSchedule) Fee(amount decimal.Decimal) decimal.Decimal {
	return decimal.Max(f.MinFee, amount.Mul(f.FeeRate).Round(0))
}

// Tax returns the transaction tax for a side. Buys are untaxed.
func (f FeeSchedule) Tax(side string, amount decimal.Decimal) decimal.Decimal {
	if side != models.TradeTypeSell {
		return decimal.Zero
	}
	return amount.Mul(f.TaxRate).Round(0)
}

// Charges returns the fee and tax of a trade, using the recorded values
// when present and the schedule otherwise.
func (f FeeSchedule) Charges(t *models.Trade) (fee, tax decimal.Decimal) {
	amount := t.Amount()
	fee = f.Fee(amount)
	if t.Fee.Valid {
		fee = t.Fee.Decimal
	}
	tax = f.Tax(t.Side, amount)
	if t.Tax.Valid {
		tax = t.Tax.Decimal
	}
	return fee, tax
}
