package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio event type constants
const (
	EventTradeExecuted  = "TRADE_EXECUTED"
	EventCashDeposited  = "CASH_DEPOSITED"
	EventPortfolioReset = "PORTFOLIO_RESET"
	EventAssetSnapshot  = "ASSET_SNAPSHOT_RECORDED"
	EventPriceUpdated   = "PRICE_UPDATED"
)

// PortfolioEvent represents a Kafka event for portfolio changes
type PortfolioEvent struct {
	EventType string           `json:"event_type"`
	Trade     *Trade           `json:"trade,omitempty"`
	Snapshot  *AssetSnapshot   `json:"snapshot,omitempty"`
	Cash      *decimal.Decimal `json:"cash,omitempty"`
	Version   int64            `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
}

// PriceEvent is a quote published by the market-data ingester
type PriceEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      PriceEventData `json:"data"`
}

// PriceEventData carries a single quote as strings, as sent upstream
type PriceEventData struct {
	Symbol string  `json:"symbol"`
	Price  string  `json:"price"`
	AsOf   *string `json:"as_of,omitempty"`
}
