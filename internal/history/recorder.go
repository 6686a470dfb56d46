// Package history records the daily total asset value of the portfolio.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/papertrade/internal/indicators"
	"github.com/trogers1052/papertrade/internal/models"
)

// SeedLookbackDays is how far back the synthetic first point of an empty
// series is placed.
const SeedLookbackDays = 3

// Recorder keeps one snapshot per calendar day. Recording the same day
// again overwrites the value, so the daily job is safe to retry.
type Recorder struct {
	mu     sync.RWMutex
	byDate map[string]decimal.Decimal
	loc    *time.Location
}

// NewRecorder creates an empty recorder that buckets days in loc
// (UTC when nil).
func NewRecorder(loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{
		byDate: make(map[string]decimal.Decimal),
		loc:    loc,
	}
}

// DateOf returns the snapshot date key for t
func (r *Recorder) DateOf(t time.Time) string {
	return t.In(r.loc).Format(models.DateLayout)
}

// Snapshot upserts the value for the day containing date and returns the
// stored snapshot.
func (r *Recorder) Snapshot(date time.Time, totalAsset decimal.Decimal) models.AssetSnapshot {
	key := r.DateOf(date)

	r.mu.Lock()
	r.byDate[key] = totalAsset
	r.mu.Unlock()

	return models.AssetSnapshot{Date: key, TotalAsset: totalAsset}
}

// Series returns snapshots from the last sinceDays days up to now, oldest
// first. sinceDays <= 0 returns the whole history.
func (r *Recorder) Series(sinceDays int, now time.Time) []models.AssetSnapshot {
	from := ""
	if sinceDays > 0 {
		from = r.DateOf(now.AddDate(0, 0, -sinceDays))
	}
	to := r.DateOf(now)

	r.mu.RLock()
	out := make([]models.AssetSnapshot, 0, len(r.byDate))
	for date, v := range r.byDate {
		if date < from || date > to {
			continue
		}
		out = append(out, models.AssetSnapshot{Date: date, TotalAsset: v})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Len returns the number of recorded days
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDate)
}

// Load replaces the recorded history
func (r *Recorder) Load(snapshots []models.AssetSnapshot) {
	byDate := make(map[string]decimal.Decimal, len(snapshots))
	for _, s := range snapshots {
		byDate[s.Date] = s.TotalAsset
	}

	r.mu.Lock()
	r.byDate = byDate
	r.mu.Unlock()
}

// Reset drops all snapshots
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.byDate = make(map[string]decimal.Decimal)
	r.mu.Unlock()
}

// SeedSeries is the two-point flat series shown when nothing has been
// recorded yet, so charts never render an empty domain.
func (r *Recorder) SeedSeries(now time.Time, initialCapital decimal.Decimal) []models.AssetSnapshot {
	return []models.AssetSnapshot{
		{Date: r.DateOf(now.AddDate(0, 0, -SeedLookbackDays)), TotalAsset: initialCapital},
		{Date: r.DateOf(now), TotalAsset: initialCapital},
	}
}

// ChartPoints converts snapshots into chart points for the indicators
// package.
func ChartPoints(snapshots []models.AssetSnapshot) []indicators.Point {
	out := make([]indicators.Point, len(snapshots))
	for i, s := range snapshots {
		out[i] = indicators.Point{Time: s.Date, Value: s.TotalAsset.InexactFloat64()}
	}
	return out
}
