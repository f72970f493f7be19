package indicator

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/moznion/go-optional"
)

// RSI returns the Wilder-smoothed relative strength index over the trailing
// window. Requires period+1 closes; returns None before that.
func RSI(closes []float64, period int) Value {
	if period <= 0 || len(closes) < period+1 {
		return optional.None[float64]()
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))

	if len(out) == 0 {
		return optional.None[float64]()
	}

	return optional.Some(out[len(out)-1])
}
