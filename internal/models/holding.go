package models

import (
	"github.com/shopspring/decimal"
)

// Holding represents an open paper position. AvgPrice is the weighted
// average execution price and excludes commissions.
type Holding struct {
	Ticker   string          `json:"ticker"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// CostBasis returns AvgPrice * Quantity.
func (h Holding) CostBasis() decimal.Decimal {
	return h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity))
}

// HoldingValuation is a holding priced at the current market price.
type HoldingValuation struct {
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
	ProfitRate   decimal.Decimal `json:"profit_rate"`
}
