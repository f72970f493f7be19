package indicator

import (
	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// OBV computes On-Balance Volume: a running sum of volume signed by the
// close-to-close direction. It is defined from the very first bar with a
// seed of zero.
func OBV(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	if len(bars) == 0 {
		return out
	}

	obv := 0.0
	out[0] = obv

	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Volume
		}

		out[i] = obv
	}

	return out
}

// OBVWithEMA returns the OBV series and its EMA with the given span. The EMA
// side is None until span bars are available.
func OBVWithEMA(bars []types.Bar, span int) ([]float64, Series) {
	obv := OBV(bars)

	return obv, EMA(obv, span)
}
