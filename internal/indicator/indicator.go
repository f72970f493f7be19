// Package indicator computes technical indicators over ordered bar series.
//
// Every function takes a gap-free, oldest-first series for a single symbol.
// Values that cannot be computed yet (not enough history) are represented as
// optional.None, never as zero or NaN: comparing an unavailable value against
// a threshold is a compile-time impossibility for callers, which was the
// single most common source of false signals in ad-hoc ports of these
// strategies.
package indicator

import (
	"github.com/moznion/go-optional"
)

// Value is a point-in-time indicator value that may not be defined yet.
type Value = optional.Option[float64]

// Series is an indicator series aligned index-for-index with its input bars.
// Leading entries are None until the indicator's minimum lookback is met.
type Series = []optional.Option[float64]

// LastN returns the trailing n values of the series if all of them are
// defined, or false otherwise.
func LastN(s Series, n int) ([]float64, bool) {
	if len(s) < n {
		return nil, false
	}

	out := make([]float64, 0, n)

	for _, v := range s[len(s)-n:] {
		if v.IsNone() {
			return nil, false
		}

		out = append(out, v.Unwrap())
	}

	return out, true
}

// Last returns the final value of the series if defined.
func Last(s Series) Value {
	if len(s) == 0 {
		return optional.None[float64]()
	}

	return s[len(s)-1]
}
