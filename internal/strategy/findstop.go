package strategy

import (
	"sort"
	"time"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// FindStop scans the session's low prices, resampled into fixed buckets
// (5 minutes in the momentum strategy), for the last local minimum: a bucket
// whose predecessor difference is <= 0 and successor difference is > 0. The
// stop goes one cent below that valley. When the series has no valley yet,
// the fallback is a flat percentage below the current price.
func FindStop(currentPrice float64, bars []types.Bar, sessionStart time.Time, bucket time.Duration, defaultStopRatio float64) float64 {
	lows := bucketLows(bars, sessionStart, bucket)

	if valley, ok := lastValley(lows); ok {
		return valley - 0.01
	}

	return currentPrice * defaultStopRatio
}

// bucketLows resamples bar lows since sessionStart into the minimum low per
// bucket, ordered chronologically.
func bucketLows(bars []types.Bar, sessionStart time.Time, bucket time.Duration) []float64 {
	mins := make(map[time.Time]float64)

	for _, b := range bars {
		if b.Time.Before(sessionStart) {
			continue
		}

		key := b.Time.Truncate(bucket)
		if low, ok := mins[key]; !ok || b.Low < low {
			mins[key] = b.Low
		}
	}

	keys := make([]time.Time, 0, len(mins))
	for k := range mins {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = mins[k]
	}

	return out
}

// lastValley returns the value of the last local minimum in the series:
// index i such that series[i]-series[i-1] <= 0 and series[i+1]-series[i] > 0.
func lastValley(series []float64) (float64, bool) {
	if len(series) < 3 {
		return 0, false
	}

	for i := len(series) - 2; i >= 1; i-- {
		if series[i]-series[i-1] <= 0 && series[i+1]-series[i] > 0 {
			return series[i], true
		}
	}

	return 0, false
}
