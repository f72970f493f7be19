package types

import (
	"time"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// SessionWindow is the trading day's open and close timestamps. All engine
// timing decisions (entry eligibility, liquidation deadlines) are expressed
// relative to this window, never as wall-clock time.
type SessionWindow struct {
	MarketOpen  time.Time `yaml:"market_open" json:"market_open"`
	MarketClose time.Time `yaml:"market_close" json:"market_close"`
}

// NewSessionWindow builds a window and checks that close is after open.
func NewSessionWindow(open, close time.Time) (SessionWindow, error) {
	if !close.After(open) {
		return SessionWindow{}, errors.Newf(errors.ErrCodeInvalidSession, "market close %s not after open %s", close, open)
	}

	return SessionWindow{MarketOpen: open, MarketClose: close}, nil
}

// SinceOpen returns the elapsed time from market open to t.
func (s SessionWindow) SinceOpen(t time.Time) time.Duration {
	return t.Sub(s.MarketOpen)
}

// UntilClose returns the remaining time from t to market close.
func (s SessionWindow) UntilClose(t time.Time) time.Duration {
	return s.MarketClose.Sub(t)
}

// MinutesSinceOpen returns whole elapsed minutes since market open.
func (s SessionWindow) MinutesSinceOpen(t time.Time) int {
	return int(s.SinceOpen(t) / time.Minute)
}

// MinutesUntilClose returns whole remaining minutes before market close.
func (s SessionWindow) MinutesUntilClose(t time.Time) int {
	return int(s.UntilClose(t) / time.Minute)
}

// Contains reports whether t falls inside the session window.
func (s SessionWindow) Contains(t time.Time) bool {
	return !t.Before(s.MarketOpen) && t.Before(s.MarketClose)
}
