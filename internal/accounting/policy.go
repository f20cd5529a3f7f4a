package accounting

import (
	"fmt"
	"strings"
)

// CostPolicy selects how buy fees reach the cost of sold shares
type CostPolicy string

const (
	// PolicyFeeInclusive capitalizes buy fees into the cost basis.
	PolicyFeeInclusive CostPolicy = "fee_inclusive"
	// PolicyFlatBuyFee keeps fees out of the basis and adds the minimum
	// fee to the cost of every sale.
	PolicyFlatBuyFee CostPolicy = "flat_buy_fee"
	// PolicyPriceOnly ignores buy fees when computing sold cost.
	PolicyPriceOnly CostPolicy = "price_only"
)

// Policies lists every supported cost policy
var Policies = []CostPolicy{PolicyFeeInclusive, PolicyFlatBuyFee, PolicyPriceOnly}

// ParseCostPolicy parses a policy name. The empty string selects the default.
func ParseCostPolicy(s string) (CostPolicy, error) {
	switch CostPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFeeInclusive:
		return PolicyFeeInclusive, nil
	case PolicyFlatBuyFee:
		return PolicyFlatBuyFee, nil
	case PolicyPriceOnly:
		return PolicyPriceOnly, nil
	}
	return "", fmt.Errorf("unknown cost policy %q", s)
}

func (p CostPolicy) String() string {
	return string(p)
}

func (p CostPolicy) capitalizesFees() bool {
	return p == PolicyFeeInclusive
}
