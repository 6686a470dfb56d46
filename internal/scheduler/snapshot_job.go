package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/trogers1052/papertrade/internal/models"
)

// Snapshotter records today's total asset value
type Snapshotter interface {
	RecordSnapshot(ctx context.Context) (models.AssetSnapshot, error)
}

// SnapshotJob records the daily asset snapshot. Re-running it on the same
// day overwrites that day's value.
type SnapshotJob struct {
	log     zerolog.Logger
	target  Snapshotter
	timeout time.Duration
}

// NewSnapshotJob creates a snapshot job
func NewSnapshotJob(log zerolog.Logger, target Snapshotter, timeout time.Duration) *SnapshotJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SnapshotJob{
		log:     log.With().Str("job", "asset_snapshot").Logger(),
		target:  target,
		timeout: timeout,
	}
}

// Name returns the job name
func (j *SnapshotJob) Name() string {
	return "asset_snapshot"
}

// Run records the snapshot
func (j *SnapshotJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	snap, err := j.target.RecordSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to record asset snapshot: %w", err)
	}

	j.log.Info().
		Str("date", snap.Date).
		Str("total_asset", snap.TotalAsset.String()).
		Msg("Recorded asset snapshot")
	return nil
}
