package types

import (
	"time"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// Interval is the candlestick interval of a bar series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Bar is one OHLCV sample for one symbol at one timestamp. Bars are
// immutable once created.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Validate checks the OHLC ordering invariant: high >= max(open, close),
// min(open, close) >= low, and volume >= 0.
func (b Bar) Validate() error {
	body := b.Open
	if b.Close > body {
		body = b.Close
	}

	if b.High < body {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar %s@%s: high %.4f below body high %.4f", b.Symbol, b.Time, b.High, body)
	}

	body = b.Open
	if b.Close < body {
		body = b.Close
	}

	if b.Low > body {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar %s@%s: low %.4f above body low %.4f", b.Symbol, b.Time, b.Low, body)
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeInvalidBar, "bar %s@%s: negative volume %.2f", b.Symbol, b.Time, b.Volume)
	}

	return nil
}

// TypicalPrice returns (high + low + close) / 3, the input to CCI.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}
