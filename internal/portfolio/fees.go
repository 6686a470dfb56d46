package portfolio

import (
	"github.com/shopspring/decimal"
)

// Default simulated brokerage rates
var (
	DefaultCommissionRate = decimal.RequireFromString("0.00015")
	DefaultTaxRate        = decimal.RequireFromString("0.002")
	DefaultInitialCapital = decimal.NewFromInt(100_000_000)
)

// FeeSchedule holds the commission charged on both legs and the
// transaction tax charged on sells. Both are floored to whole currency units.
type FeeSchedule struct {
	CommissionRate decimal.Decimal
	TaxRate        decimal.Decimal
}

// DefaultFeeSchedule returns 0.015% commission and 0.2% sell tax
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		CommissionRate: DefaultCommissionRate,
		TaxRate:        DefaultTaxRate,
	}
}

// Commission returns floor(notional * CommissionRate)
func (f FeeSchedule) Commission(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(f.CommissionRate).Floor()
}

// Tax returns floor(notional * TaxRate)
func (f FeeSchedule) Tax(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(f.TaxRate).Floor()
}
