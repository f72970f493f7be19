package strategy

import (
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/derekmborges/algorithmic-trading/internal/indicator"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// MomentumConfig parameterizes the intraday momentum evaluator. The stop
// ratios and MACD windows vary between strategy variants, so all of them are
// named configuration.
type MomentumConfig struct {
	// EntryDelayMinutes is the warm-up after market open before entries are
	// considered, avoiding open-auction noise.
	EntryDelayMinutes int `yaml:"entry_delay_minutes"`
	// EntryCutoffMinutes closes the entry window this long after open.
	EntryCutoffMinutes int `yaml:"entry_cutoff_minutes"`
	// ExitDelayMinutes is the warm-up before exit rules are evaluated.
	ExitDelayMinutes int `yaml:"exit_delay_minutes"`
	// CloseoutMinutes before market close, exits are left to the engine's
	// forced liquidation.
	CloseoutMinutes int `yaml:"closeout_minutes"`

	// MinDailyChange is the minimum fractional change from the previous
	// day's close (0.04 = 4%).
	MinDailyChange float64 `yaml:"min_daily_change"`
	// MinSessionVolume is the minimum cumulative volume since open.
	MinSessionVolume float64 `yaml:"min_session_volume"`
	// RequireOpeningRangeBreakout additionally demands the close exceed the
	// highest high of the first OpeningRangeMinutes of the session.
	RequireOpeningRangeBreakout bool `yaml:"require_opening_range_breakout"`
	OpeningRangeMinutes         int  `yaml:"opening_range_minutes"`

	FastEntryMACD indicator.MACDConfig `yaml:"fast_entry_macd"`
	SlowEntryMACD indicator.MACDConfig `yaml:"slow_entry_macd"`
	ExitMACD      indicator.MACDConfig `yaml:"exit_macd"`

	// RewardMultiple sets target = entry + (entry - stop) * RewardMultiple.
	RewardMultiple float64 `yaml:"reward_multiple"`
	// DefaultStopRatio is the flat-stop fallback when no valley exists.
	DefaultStopRatio float64 `yaml:"default_stop_ratio"`
	// TrailingStopRatio ratchets the stop to close*ratio as price advances.
	TrailingStopRatio float64 `yaml:"trailing_stop_ratio"`

	// LookbackBars bounds the history pulled for MACD computation.
	LookbackBars int `yaml:"lookback_bars"`
	// StopLookbackBars bounds the low-price scan in FindStop.
	StopLookbackBars int `yaml:"stop_lookback_bars"`
	// StopBucketMinutes is the resample bucket of the FindStop scan.
	StopBucketMinutes int `yaml:"stop_bucket_minutes"`
}

// DefaultMomentumConfig returns the parameters of the paper-trading
// momentum strategy.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		EntryDelayMinutes:           15,
		EntryCutoffMinutes:          60,
		ExitDelayMinutes:            24,
		CloseoutMinutes:             15,
		MinDailyChange:              0.04,
		MinSessionVolume:            30000,
		RequireOpeningRangeBreakout: true,
		OpeningRangeMinutes:         15,
		FastEntryMACD:               indicator.MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
		SlowEntryMACD:               indicator.MACDConfig{FastPeriod: 40, SlowPeriod: 60, SignalPeriod: 9},
		ExitMACD:                    indicator.MACDConfig{FastPeriod: 13, SlowPeriod: 21, SignalPeriod: 9},
		RewardMultiple:              3,
		DefaultStopRatio:            0.95,
		TrailingStopRatio:           0.96,
		LookbackBars:                1000,
		StopLookbackBars:            100,
		StopBucketMinutes:           5,
	}
}

// MomentumEvaluator implements the intraday momentum entry/exit rules.
type MomentumEvaluator struct {
	cfg  MomentumConfig
	hist indicator.HistogramFunc
}

// NewMomentumEvaluator creates the evaluator with the given configuration.
func NewMomentumEvaluator(cfg MomentumConfig) (*MomentumEvaluator, error) {
	for _, macd := range []indicator.MACDConfig{cfg.FastEntryMACD, cfg.SlowEntryMACD, cfg.ExitMACD} {
		if err := macd.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.RewardMultiple <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "reward multiple must be positive, got %.2f", cfg.RewardMultiple)
	}

	if cfg.DefaultStopRatio <= 0 || cfg.DefaultStopRatio >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "default stop ratio must be in (0, 1), got %.2f", cfg.DefaultStopRatio)
	}

	return &MomentumEvaluator{cfg: cfg, hist: indicator.MACDHistogram}, nil
}

// NewMomentumEvaluatorFromYAML builds the evaluator from a YAML document,
// applying defaults for omitted fields.
func NewMomentumEvaluatorFromYAML(config string) (*MomentumEvaluator, error) {
	cfg := DefaultMomentumConfig()
	if config != "" {
		if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse momentum config", err)
		}
	}

	return NewMomentumEvaluator(cfg)
}

// Name implements Evaluator.
func (m *MomentumEvaluator) Name() string {
	return "momentum"
}

// Evaluate implements Evaluator.
func (m *MomentumEvaluator) Evaluate(ctx Context, bar types.Bar, position optional.Option[types.Position]) (Decision, error) {
	if position.IsSome() {
		pos := position.Unwrap()

		return m.evaluateHeld(ctx, bar, pos), nil
	}

	return m.evaluateFlat(ctx, bar), nil
}

// evaluateFlat applies the conjunctive entry conditions. Any failing
// condition, including an unavailable indicator, suppresses entry for this
// bar.
func (m *MomentumEvaluator) evaluateFlat(ctx Context, bar types.Bar) Decision {
	mins := ctx.Session.MinutesSinceOpen(bar.Time)
	if mins <= m.cfg.EntryDelayMinutes || mins >= m.cfg.EntryCutoffMinutes {
		return NoAction()
	}

	prevClose := ctx.History.PrevDayClose(bar.Symbol)
	if prevClose.IsNone() || prevClose.Unwrap() <= 0 {
		return NoAction()
	}

	dailyChange := (bar.Close - prevClose.Unwrap()) / prevClose.Unwrap()
	if dailyChange <= m.cfg.MinDailyChange {
		return NoAction()
	}

	if ctx.History.SessionVolume(bar.Symbol) <= m.cfg.MinSessionVolume {
		return NoAction()
	}

	if m.cfg.RequireOpeningRangeBreakout {
		orHigh, ok := m.openingRangeHigh(ctx, bar.Symbol)
		if !ok || bar.Close <= orHigh {
			return NoAction()
		}
	}

	closes := closePrices(ctx.History.Bars(bar.Symbol, m.cfg.LookbackBars))

	// Fast histogram must be positive and strictly increasing over the last
	// three samples.
	fast, ok := indicator.LastN(m.hist(closes, m.cfg.FastEntryMACD), 3)
	if !ok || fast[2] <= 0 || !(fast[0] < fast[1] && fast[1] < fast[2]) {
		return NoAction()
	}

	// Slow histogram must be positive and non-decreasing.
	slow, ok := indicator.LastN(m.hist(closes, m.cfg.SlowEntryMACD), 2)
	if !ok || slow[1] <= 0 || slow[1] < slow[0] {
		return NoAction()
	}

	stopBars := ctx.History.Bars(bar.Symbol, m.cfg.StopLookbackBars)
	stop := FindStop(bar.Close, stopBars, ctx.Session.MarketOpen, time.Duration(m.cfg.StopBucketMinutes)*time.Minute, m.cfg.DefaultStopRatio)
	target := bar.Close + (bar.Close-stop)*m.cfg.RewardMultiple

	return Decision{
		Action: types.ActionEnter,
		Stop:   optional.Some(stop),
		Target: optional.Some(target),
		Reason: types.Reason{
			Reason:  types.OrderReasonEntrySignal,
			Message: fmt.Sprintf("momentum entry: daily change %.2f%%, MACD rising", dailyChange*100),
		},
	}
}

// evaluateHeld applies the exit rules and the trailing-stop ratchet.
func (m *MomentumEvaluator) evaluateHeld(ctx Context, bar types.Bar, pos types.Position) Decision {
	mins := ctx.Session.MinutesSinceOpen(bar.Time)
	untilClose := ctx.Session.MinutesUntilClose(bar.Time)

	if mins >= m.cfg.ExitDelayMinutes && untilClose > m.cfg.CloseoutMinutes {
		if bar.Close <= pos.StopLoss {
			return exitDecision(types.OrderReasonStopLoss, fmt.Sprintf("close %.2f at or below stop %.2f", bar.Close, pos.StopLoss))
		}

		closes := closePrices(ctx.History.Bars(bar.Symbol, m.cfg.LookbackBars))

		hist := indicator.Last(m.hist(closes, m.cfg.ExitMACD))
		if hist.IsSome() {
			h := hist.Unwrap()

			if pos.Target > 0 && bar.Close >= pos.Target && h <= 0 {
				return exitDecision(types.OrderReasonTakeProfit, fmt.Sprintf("target %.2f reached with momentum fading", pos.Target))
			}

			if bar.Close <= pos.AverageEntryPrice() && h <= 0 {
				return exitDecision(types.OrderReasonExitSignal, "price back at entry with momentum non-positive")
			}
		}
	}

	// Trailing ratchet: propose a raise when price makes a new reference
	// high and the trailed stop beats the current one.
	if bar.Close > pos.Reference && bar.Close*m.cfg.TrailingStopRatio > pos.StopLoss {
		d := NoAction()
		d.Stop = optional.Some(bar.Close * m.cfg.TrailingStopRatio)

		return d
	}

	return NoAction()
}

// openingRangeHigh returns the highest high of the first
// OpeningRangeMinutes of the session.
func (m *MomentumEvaluator) openingRangeHigh(ctx Context, symbol string) (float64, bool) {
	cutoff := ctx.Session.MarketOpen.Add(time.Duration(m.cfg.OpeningRangeMinutes) * time.Minute)

	high := 0.0
	found := false

	for _, b := range ctx.History.SessionBars(symbol) {
		if !b.Time.Before(cutoff) {
			break
		}

		if !found || b.High > high {
			high = b.High
			found = true
		}
	}

	return high, found
}

func exitDecision(reason, message string) Decision {
	d := NoAction()
	d.Action = types.ActionExit
	d.Reason = types.Reason{Reason: reason, Message: message}

	return d
}

func closePrices(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}

	return out
}
