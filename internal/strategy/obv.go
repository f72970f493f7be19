package strategy

import (
	"fmt"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/derekmborges/algorithmic-trading/internal/indicator"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// OBVConfig parameterizes the on-balance-volume evaluator. The backtest
// variants of this strategy used 0.98 as the initial stop ratio and 0.96 for
// trailing, differing from the momentum defaults, hence named config.
type OBVConfig struct {
	// EMASpan is the smoothing span of the OBV EMA crossover line.
	EMASpan int `yaml:"ema_span"`
	// InitialStopRatio sets the stop at entry: close * ratio.
	InitialStopRatio float64 `yaml:"initial_stop_ratio"`
	// TrailingStopRatio ratchets the stop to close*ratio as price advances.
	TrailingStopRatio float64 `yaml:"trailing_stop_ratio"`
	// LookbackBars bounds the history pulled for the OBV computation.
	LookbackBars int `yaml:"lookback_bars"`
}

// DefaultOBVConfig returns the backtested OBV strategy parameters.
func DefaultOBVConfig() OBVConfig {
	return OBVConfig{
		EMASpan:           20,
		InitialStopRatio:  0.98,
		TrailingStopRatio: 0.96,
		LookbackBars:      500,
	}
}

// OBVEvaluator enters when OBV crosses above its EMA and exits when it drops
// below, with a trailing stop. It proves the engine is strategy-agnostic:
// same state machine, different Evaluator.
type OBVEvaluator struct {
	cfg OBVConfig
}

// NewOBVEvaluator creates the evaluator with the given configuration.
func NewOBVEvaluator(cfg OBVConfig) (*OBVEvaluator, error) {
	if cfg.EMASpan <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "OBV EMA span must be positive, got %d", cfg.EMASpan)
	}

	if cfg.InitialStopRatio <= 0 || cfg.InitialStopRatio >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "initial stop ratio must be in (0, 1), got %.2f", cfg.InitialStopRatio)
	}

	return &OBVEvaluator{cfg: cfg}, nil
}

// NewOBVEvaluatorFromYAML builds the evaluator from a YAML document,
// applying defaults for omitted fields.
func NewOBVEvaluatorFromYAML(config string) (*OBVEvaluator, error) {
	cfg := DefaultOBVConfig()
	if config != "" {
		if err := yaml.Unmarshal([]byte(config), &cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse obv config", err)
		}
	}

	return NewOBVEvaluator(cfg)
}

// Name implements Evaluator.
func (o *OBVEvaluator) Name() string {
	return "obv"
}

// Evaluate implements Evaluator.
func (o *OBVEvaluator) Evaluate(ctx Context, bar types.Bar, position optional.Option[types.Position]) (Decision, error) {
	bars := ctx.History.Bars(bar.Symbol, o.cfg.LookbackBars)

	obv, ema := indicator.OBVWithEMA(bars, o.cfg.EMASpan)

	last := indicator.Last(ema)
	if last.IsNone() || len(obv) == 0 {
		// EMA not stabilized yet: no signal either way.
		return NoAction(), nil
	}

	obvNow := obv[len(obv)-1]
	emaNow := last.Unwrap()

	if position.IsNone() {
		if obvNow > emaNow {
			d := NoAction()
			d.Action = types.ActionEnter
			d.Stop = optional.Some(bar.Close * o.cfg.InitialStopRatio)
			d.Reason = types.Reason{
				Reason:  types.OrderReasonEntrySignal,
				Message: fmt.Sprintf("OBV %.0f above EMA %.0f", obvNow, emaNow),
			}

			return d, nil
		}

		return NoAction(), nil
	}

	pos := position.Unwrap()

	if bar.Close <= pos.StopLoss {
		return exitDecision(types.OrderReasonStopLoss, fmt.Sprintf("close %.2f at or below stop %.2f", bar.Close, pos.StopLoss)), nil
	}

	if obvNow < emaNow {
		return exitDecision(types.OrderReasonExitSignal, fmt.Sprintf("OBV %.0f below EMA %.0f", obvNow, emaNow)), nil
	}

	if bar.Close > pos.Reference && bar.Close*o.cfg.TrailingStopRatio > pos.StopLoss {
		d := NoAction()
		d.Stop = optional.Some(bar.Close * o.cfg.TrailingStopRatio)

		return d, nil
	}

	return NoAction(), nil
}
