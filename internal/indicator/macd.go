package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// MACDConfig holds the three EMA window lengths of a MACD calculation.
// Different strategies use different windows (12/26/9 and 40/60/9 for entry,
// 13/21/9 for exit in the momentum strategy), so these are always explicit
// configuration, never package constants.
type MACDConfig struct {
	FastPeriod   int `yaml:"fast_period" json:"fast_period"`
	SlowPeriod   int `yaml:"slow_period" json:"slow_period"`
	SignalPeriod int `yaml:"signal_period" json:"signal_period"`
}

// Validate checks that the windows are positive and fast < slow.
func (c MACDConfig) Validate() error {
	if c.FastPeriod <= 0 || c.SlowPeriod <= 0 || c.SignalPeriod <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "MACD periods must be positive, got %d/%d/%d", c.FastPeriod, c.SlowPeriod, c.SignalPeriod)
	}

	if c.FastPeriod >= c.SlowPeriod {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "MACD fast period %d must be below slow period %d", c.FastPeriod, c.SlowPeriod)
	}

	return nil
}

// MinBars returns the number of bars needed before the histogram is defined.
func (c MACDConfig) MinBars() int {
	return c.SlowPeriod + c.SignalPeriod
}

// MACDLine computes the MACD line (fast EMA - slow EMA) over closes. Values
// are defined from index slowPeriod-1.
func MACDLine(closes []float64, cfg MACDConfig) Series {
	fast := EMA(closes, cfg.FastPeriod)
	slow := EMA(closes, cfg.SlowPeriod)

	out := make(Series, len(closes))

	for i := range closes {
		if fast[i].IsSome() && slow[i].IsSome() {
			out[i] = optional.Some(fast[i].Unwrap() - slow[i].Unwrap())
		} else {
			out[i] = optional.None[float64]()
		}
	}

	return out
}

// MACDHistogram computes histogram = MACD line - signal line, where the
// signal line is an EMA of the MACD line over signalPeriod. Feeding at least
// slowPeriod+signalPeriod bars guarantees a defined trailing value.
func MACDHistogram(closes []float64, cfg MACDConfig) Series {
	line := MACDLine(closes, cfg)
	signal := emaOver(line, cfg.SignalPeriod)

	out := make(Series, len(closes))

	for i := range closes {
		if line[i].IsSome() && signal[i].IsSome() {
			out[i] = optional.Some(line[i].Unwrap() - signal[i].Unwrap())
		} else {
			out[i] = optional.None[float64]()
		}
	}

	return out
}

// HistogramFunc is the MACD histogram computation used by evaluators.
// Declared as a type so tests can substitute a controlled histogram.
type HistogramFunc func(closes []float64, cfg MACDConfig) Series
