package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/models"
)

// CreateTrade appends a trade to the ledger. Re-inserting the same ID is a
// no-op, as is a trade whose version predates the last reset.
func (db *DB) CreateTrade(ctx context.Context, t models.Trade) error {
	query := `
		INSERT INTO trade_ledger (
			id, ticker, name, action, price, quantity,
			commission, tax, amount, profit, profit_rate, version, executed_at
		)
		SELECT $1::uuid, $2::text, $3::text, $4::text, $5::numeric, $6::bigint,
		       $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11::numeric,
		       $12::bigint, $13::timestamptz
		WHERE $12::bigint > ` + resetVersion + `
		ON CONFLICT (id) DO NOTHING
	`
	profit := decimal.NullDecimal{}
	if t.Profit != nil {
		profit = decimal.NewNullDecimal(*t.Profit)
	}
	rate := decimal.NullDecimal{}
	if t.ProfitRate != nil {
		rate = decimal.NewNullDecimal(*t.ProfitRate)
	}

	_, err := db.conn.ExecContext(ctx, query,
		t.ID, t.Ticker, t.Name, t.Action, t.Price, t.Quantity,
		t.Commission, t.Tax, t.Amount, profit, rate, t.Version, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

// AllTrades returns the ledger since the last reset, oldest first
func (db *DB) AllTrades(ctx context.Context) ([]models.Trade, error) {
	query := tradeColumns + `
		WHERE version > ` + resetVersion + `
		ORDER BY executed_at ASC, seq ASC`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

const tradeColumns = `
	SELECT id, ticker, name, action, price, quantity,
	       commission, tax, amount, profit, profit_rate, version, executed_at
	FROM trade_ledger`

// resetVersion is the account version of the last reset, 0 if none
const resetVersion = `COALESCE((SELECT reset_version FROM portfolio_account WHERE id = 1), 0)`

func scanTrades(rows *sql.Rows) ([]models.Trade, error) {
	trades := []models.Trade{}
	for rows.Next() {
		var t models.Trade
		var profit, rate decimal.NullDecimal

		err := rows.Scan(
			&t.ID, &t.Ticker, &t.Name, &t.Action, &t.Price, &t.Quantity,
			&t.Commission, &t.Tax, &t.Amount, &profit, &rate, &t.Version, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}

		if profit.Valid {
			t.Profit = &profit.Decimal
		}
		if rate.Valid {
			t.ProfitRate = &rate.Decimal
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}
	return trades, nil
}
