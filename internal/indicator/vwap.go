package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// VWAP computes the session volume-weighted average price: cumulative
// (typical price * volume) over cumulative volume. The caller passes only
// bars since session open; VWAP is undefined before the session and while no
// volume has traded.
func VWAP(sessionBars []types.Bar) Series {
	out := make(Series, len(sessionBars))

	cumPV := 0.0
	cumV := 0.0

	for i, b := range sessionBars {
		cumPV += b.TypicalPrice() * b.Volume
		cumV += b.Volume

		if cumV > 0 {
			out[i] = optional.Some(cumPV / cumV)
		} else {
			out[i] = optional.None[float64]()
		}
	}

	return out
}
