package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade action constants
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Trade is an executed paper order. Profit and ProfitRate are only set on
// SELL trades and are fixed at execution time. Version is the account
// version the trade produced.
type Trade struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Ticker     string           `json:"ticker"`
	Name       string           `json:"name"`
	Action     string           `json:"action"`
	Price      decimal.Decimal  `json:"price"`
	Quantity   int64            `json:"quantity"`
	Commission decimal.Decimal  `json:"commission"`
	Tax        decimal.Decimal  `json:"tax"`
	Amount     decimal.Decimal  `json:"amount"` // net cash debit (BUY) or credit (SELL)
	Profit     *decimal.Decimal `json:"profit,omitempty"`
	ProfitRate *decimal.Decimal `json:"profit_rate,omitempty"`
	Version    int64            `json:"-"`
}

