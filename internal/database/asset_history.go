package database

import (
	"context"
	"fmt"
	"time"

	"github.com/trogers1052/papertrade/internal/models"
)

// UpsertAssetSnapshot records the total asset value for a date, replacing
// any value already stored for that date.
func (db *DB) UpsertAssetSnapshot(ctx context.Context, snap models.AssetSnapshot) error {
	query := `
		INSERT INTO asset_history (date, total_asset, recorded_at)
		VALUES ($1::date, $2, $3)
		ON CONFLICT (date) DO UPDATE SET
			total_asset = EXCLUDED.total_asset,
			recorded_at = EXCLUDED.recorded_at
	`
	if _, err := db.conn.ExecContext(ctx, query, snap.Date, snap.TotalAsset, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert asset snapshot %s: %w", snap.Date, err)
	}
	return nil
}

// ListAssetSnapshots returns every stored snapshot in ascending date order
func (db *DB) ListAssetSnapshots(ctx context.Context) ([]models.AssetSnapshot, error) {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), total_asset
		FROM asset_history
		ORDER BY date ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []models.AssetSnapshot{}
	for rows.Next() {
		var s models.AssetSnapshot
		if err := rows.Scan(&s.Date, &s.TotalAsset); err != nil {
			return nil, fmt.Errorf("failed to scan asset snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate asset snapshots: %w", err)
	}
	return snaps, nil
}
