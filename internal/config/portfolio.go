package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/portfolio"
)

// Options converts the configured account parameters into store options
func (p *PortfolioConfig) Options() (portfolio.Options, error) {
	capital, err := decimal.NewFromString(p.InitialCapital)
	if err != nil {
		return portfolio.Options{}, fmt.Errorf("invalid initial capital %q: %w", p.InitialCapital, err)
	}
	if !capital.IsPositive() {
		return portfolio.Options{}, fmt.Errorf("initial capital must be positive, got %s", capital)
	}

	commission, err := decimal.NewFromString(p.CommissionRate)
	if err != nil {
		return portfolio.Options{}, fmt.Errorf("invalid commission rate %q: %w", p.CommissionRate, err)
	}
	tax, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return portfolio.Options{}, fmt.Errorf("invalid tax rate %q: %w", p.TaxRate, err)
	}
	if commission.IsNegative() || tax.IsNegative() {
		return portfolio.Options{}, fmt.Errorf("fee rates must not be negative")
	}
	if p.Currency != "" && !portfolio.ValidCurrency(p.Currency) {
		return portfolio.Options{}, fmt.Errorf("unknown currency %q", p.Currency)
	}

	return portfolio.Options{
		InitialCapital: capital,
		Fees: portfolio.FeeSchedule{
			CommissionRate: commission,
			TaxRate:        tax,
		},
		Currency: p.Currency,
	}, nil
}

// Location returns the timezone used to bucket asset history days
func (p *PortfolioConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}
