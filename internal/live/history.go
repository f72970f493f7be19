package live

import (
	"sync"

	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// rollingHistory is the strategy.History implementation for streamed bars.
// Unlike the backtest replay it is shared across symbols and bounded: only
// the most recent maxBars per symbol are retained.
type rollingHistory struct {
	mu      sync.RWMutex
	maxBars int

	bars            map[string][]types.Bar
	sessionStartIdx map[string]int
	sessionVolume   map[string]float64
	prevCloses      map[string]float64
}

func newRollingHistory(maxBars int) *rollingHistory {
	return &rollingHistory{
		maxBars:         maxBars,
		bars:            make(map[string][]types.Bar),
		sessionStartIdx: make(map[string]int),
		sessionVolume:   make(map[string]float64),
		prevCloses:      make(map[string]float64),
	}
}

// SeedPrevClose installs the previous day's closing price, fetched at
// startup from historical data.
func (h *rollingHistory) SeedPrevClose(symbol string, close float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.prevCloses[symbol] = close
}

// StartSession resets the per-session aggregates for all symbols, carrying
// the last close of the previous session forward.
func (h *rollingHistory) StartSession() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for symbol, bars := range h.bars {
		h.sessionStartIdx[symbol] = len(bars)
		h.sessionVolume[symbol] = 0

		if len(bars) > 0 {
			h.prevCloses[symbol] = bars[len(bars)-1].Close
		}
	}
}

// Append adds a streamed bar, evicting the oldest when over capacity.
func (h *rollingHistory) Append(bar types.Bar) {
	h.mu.Lock()
	defer h.mu.Unlock()

	bars := append(h.bars[bar.Symbol], bar)
	h.sessionVolume[bar.Symbol] += bar.Volume

	if len(bars) > h.maxBars {
		drop := len(bars) - h.maxBars
		bars = bars[drop:]

		idx := h.sessionStartIdx[bar.Symbol] - drop
		if idx < 0 {
			idx = 0
		}

		h.sessionStartIdx[bar.Symbol] = idx
	}

	h.bars[bar.Symbol] = bars
}

// Bars implements strategy.History.
func (h *rollingHistory) Bars(symbol string, n int) []types.Bar {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bars := h.bars[symbol]
	if n <= 0 || len(bars) == 0 {
		return nil
	}

	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}

	out := make([]types.Bar, len(bars))
	copy(out, bars)

	return out
}

// SessionBars implements strategy.History.
func (h *rollingHistory) SessionBars(symbol string) []types.Bar {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bars := h.bars[symbol][h.sessionStartIdx[symbol]:]

	out := make([]types.Bar, len(bars))
	copy(out, bars)

	return out
}

// SessionVolume implements strategy.History.
func (h *rollingHistory) SessionVolume(symbol string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sessionVolume[symbol]
}

// PrevDayClose implements strategy.History.
func (h *rollingHistory) PrevDayClose(symbol string) optional.Option[float64] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	close, ok := h.prevCloses[symbol]
	if !ok {
		return optional.None[float64]()
	}

	return optional.Some(close)
}

// LastClose returns the most recent close for a symbol.
func (h *rollingHistory) LastClose(symbol string) optional.Option[float64] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bars := h.bars[symbol]
	if len(bars) == 0 {
		return optional.None[float64]()
	}

	return optional.Some(bars[len(bars)-1].Close)
}
