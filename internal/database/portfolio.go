package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/papertrade/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// LoadPortfolioState reads the account row and its holdings
func (db *DB) LoadPortfolioState(ctx context.Context) (*models.PortfolioState, error) {
	query := `
		SELECT cash, initial_capital, version, updated_at
		FROM portfolio_account
		WHERE id = 1
	`
	var state models.PortfolioState
	err := db.conn.QueryRowContext(ctx, query).Scan(
		&state.Cash, &state.InitialCapital, &state.Version, &state.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio account %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio account: %w", err)
	}

	holdings, err := db.listHoldings(ctx)
	if err != nil {
		return nil, err
	}
	state.Holdings = holdings
	return &state, nil
}

func (db *DB) listHoldings(ctx context.Context) ([]models.Holding, error) {
	query := `
		SELECT ticker, name, quantity, avg_price
		FROM portfolio_holdings
		ORDER BY ticker
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	holdings := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Ticker, &h.Name, &h.Quantity, &h.AvgPrice); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate holdings: %w", err)
	}
	return holdings, nil
}

// SavePortfolioState replaces the account row and all holdings in a single
// transaction. A state whose version is not newer than the stored one is
// ignored and reported as not applied.
func (db *DB) SavePortfolioState(ctx context.Context, state models.PortfolioState) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	applied, err := upsertAccount(ctx, tx, state)
	if err != nil || !applied {
		return false, err
	}

	if err := replaceHoldings(ctx, tx, state); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// ResetPortfolio writes the post-reset account, removes holdings and every
// trade up to the reset version, and clears asset history recorded at or
// before the reset. The reset version is kept so trades committed before the
// reset but written afterwards are refused and never read back.
func (db *DB) ResetPortfolio(ctx context.Context, state models.PortfolioState) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	applied, err := upsertAccount(ctx, tx, state)
	if err != nil {
		return false, err
	}
	if applied {
		if err := replaceHoldings(ctx, tx, state); err != nil {
			return false, err
		}
	}

	markReset := `
		UPDATE portfolio_account
		SET reset_version = GREATEST(reset_version, $1)
		WHERE id = 1
	`
	if _, err := tx.ExecContext(ctx, markReset, state.Version); err != nil {
		return false, fmt.Errorf("failed to record reset version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM trade_ledger WHERE version <= $1`, state.Version); err != nil {
		return false, fmt.Errorf("failed to clear trade ledger: %w", err)
	}

	resetAt := state.UpdatedAt
	if resetAt.IsZero() {
		resetAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset_history WHERE recorded_at <= $1`, resetAt); err != nil {
		return false, fmt.Errorf("failed to clear asset history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return applied, nil
}

func upsertAccount(ctx context.Context, tx *sql.Tx, state models.PortfolioState) (bool, error) {
	query := `
		INSERT INTO portfolio_account (id, cash, initial_capital, version, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			cash = EXCLUDED.cash,
			initial_capital = EXCLUDED.initial_capital,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE portfolio_account.version < EXCLUDED.version
	`
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	res, err := tx.ExecContext(ctx, query, state.Cash, state.InitialCapital, state.Version, updatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to save portfolio account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func replaceHoldings(ctx context.Context, tx *sql.Tx, state models.PortfolioState) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio_holdings`); err != nil {
		return fmt.Errorf("failed to delete existing holdings: %w", err)
	}

	query := `
		INSERT INTO portfolio_holdings (ticker, name, quantity, avg_price, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	now := time.Now()
	for _, h := range state.Holdings {
		if _, err := tx.ExecContext(ctx, query, h.Ticker, h.Name, h.Quantity, h.AvgPrice, now); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Ticker, err)
		}
	}
	return nil
}
