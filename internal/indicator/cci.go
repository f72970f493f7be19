package indicator

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// CCI returns the Commodity Channel Index over the trailing window of
// typical prices: (tp - sma(tp)) / (0.015 * mean deviation). Requires period
// bars; returns None before that, or when the window has zero deviation.
func CCI(bars []types.Bar, period int) Value {
	if period <= 0 || len(bars) < period {
		return optional.None[float64]()
	}

	window := bars[len(bars)-period:]

	sum := 0.0
	for _, b := range window {
		sum += b.TypicalPrice()
	}

	sma := sum / float64(period)

	dev := 0.0
	for _, b := range window {
		dev += math.Abs(b.TypicalPrice() - sma)
	}

	meanDev := dev / float64(period)
	if meanDev == 0 {
		return optional.None[float64]()
	}

	tp := window[len(window)-1].TypicalPrice()

	return optional.Some((tp - sma) / (0.015 * meanDev))
}
