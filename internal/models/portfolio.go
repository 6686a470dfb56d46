package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioState is a consistent copy of the account taken under the store
// lock. Version increases by one on every committed mutation.
type PortfolioState struct {
	Cash           decimal.Decimal `json:"cash"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	Holdings       []Holding       `json:"holdings"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Valuation is the read-only view of the portfolio at a set of prices.
type Valuation struct {
	Cash            decimal.Decimal    `json:"cash"`
	Holdings        []HoldingValuation `json:"holdings"`
	HoldingsValue   decimal.Decimal    `json:"holdings_value"`
	TotalAssetValue decimal.Decimal    `json:"total_asset_value"`
	TotalProfit     decimal.Decimal    `json:"total_profit"`
	TotalProfitRate decimal.Decimal    `json:"total_profit_rate"`
	InitialCapital  decimal.Decimal    `json:"initial_capital"`
}

// AssetSnapshot is the total portfolio value recorded for one calendar day.
type AssetSnapshot struct {
	Date       string          `json:"date"` // YYYY-MM-DD
	TotalAsset decimal.Decimal `json:"total_asset"`
}

// DateLayout is the layout used for AssetSnapshot dates.
const DateLayout = "2006-01-02"
