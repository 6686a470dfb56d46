// Package indicators computes chart overlays over a valuation series.
package indicators

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// ErrInvalidPeriod is returned for a non-positive moving-average period.
var ErrInvalidPeriod = errors.New("moving average period must be positive")

// Point is a single value on a chart
type Point struct {
	Time  string  `json:"time"` // YYYY-MM-DD
	Value float64 `json:"value"`
}

// SMA returns the simple moving average of series over period.
//
// The output has the same length as the input. While fewer than period
// points are available the value is the mean of every point seen so far,
// afterwards it is the trailing mean of the last period points. Values are
// not rounded.
func SMA(series []Point, period int) ([]Point, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	out := make([]Point, len(series))
	for i := range series {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		out[i] = Point{
			Time:  series[i].Time,
			Value: stat.Mean(values[start:i+1], nil),
		}
	}
	return out, nil
}

// MovingAverages computes one SMA line per period, keyed by period.
func MovingAverages(series []Point, periods []int) (map[int][]Point, error) {
	lines := make(map[int][]Point, len(periods))
	for _, period := range periods {
		line, err := SMA(series, period)
		if err != nil {
			return nil, err
		}
		lines[period] = line
	}
	return lines, nil
}
