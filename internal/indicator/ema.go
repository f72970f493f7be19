package indicator

import (
	"github.com/moznion/go-optional"
)

// EMA computes the exponential moving average of values with the given
// period. The first defined value appears at index period-1, seeded with the
// simple average of the first period values; after that the standard
// recursion ema = alpha*value + (1-alpha)*prev applies with
// alpha = 2/(period+1).
func EMA(values []float64, period int) Series {
	out := make(Series, len(values))
	for i := range out {
		out[i] = optional.None[float64]()
	}

	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for _, v := range values[:period] {
		sum += v
	}

	alpha := 2.0 / (float64(period) + 1.0)
	prev := sum / float64(period)
	out[period-1] = optional.Some(prev)

	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = optional.Some(prev)
	}

	return out
}

// emaOver runs EMA over a possibly partially-defined input series, starting
// the seed window at the first defined input value.
func emaOver(in Series, period int) Series {
	out := make(Series, len(in))
	for i := range out {
		out[i] = optional.None[float64]()
	}

	start := -1

	for i, v := range in {
		if v.IsSome() {
			start = i

			break
		}
	}

	if start < 0 || period <= 0 || len(in)-start < period {
		return out
	}

	defined := make([]float64, 0, len(in)-start)
	for _, v := range in[start:] {
		defined = append(defined, v.Unwrap())
	}

	sub := EMA(defined, period)
	copy(out[start:], sub)

	return out
}
