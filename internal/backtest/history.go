package backtest

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// replayHistory is the strategy.History implementation for replayed bars.
// It tracks a single symbol: the driver replays symbols one at a time.
type replayHistory struct {
	symbol string
	bars   []types.Bar

	sessionStartIdx int
	sessionVolume   float64
	prevClose       optional.Option[float64]
}

func newReplayHistory(symbol string) *replayHistory {
	return &replayHistory{
		symbol:    symbol,
		prevClose: optional.None[float64](),
	}
}

// StartSession marks a new trading day. Bars appended before this point stay
// available for lookback but are excluded from session aggregates.
func (h *replayHistory) StartSession(prevClose optional.Option[float64]) {
	h.sessionStartIdx = len(h.bars)
	h.sessionVolume = 0
	h.prevClose = prevClose
}

// Append adds the bar that is about to be evaluated.
func (h *replayHistory) Append(bar types.Bar) {
	h.bars = append(h.bars, bar)
	h.sessionVolume += bar.Volume
}

// Bars implements strategy.History.
func (h *replayHistory) Bars(symbol string, n int) []types.Bar {
	if symbol != h.symbol || n <= 0 {
		return nil
	}

	if len(h.bars) <= n {
		return h.bars
	}

	return h.bars[len(h.bars)-n:]
}

// SessionBars implements strategy.History.
func (h *replayHistory) SessionBars(symbol string) []types.Bar {
	if symbol != h.symbol {
		return nil
	}

	return h.bars[h.sessionStartIdx:]
}

// SessionVolume implements strategy.History.
func (h *replayHistory) SessionVolume(symbol string) float64 {
	if symbol != h.symbol {
		return 0
	}

	return h.sessionVolume
}

// PrevDayClose implements strategy.History.
func (h *replayHistory) PrevDayClose(symbol string) optional.Option[float64] {
	if symbol != h.symbol {
		return optional.None[float64]()
	}

	return h.prevClose
}

// LastBarTime returns the time of the most recent bar.
func (h *replayHistory) LastBarTime() (time.Time, bool) {
	if len(h.bars) == 0 {
		return time.Time{}, false
	}

	return h.bars[len(h.bars)-1].Time, true
}
