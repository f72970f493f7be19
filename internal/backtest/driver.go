// Package backtest replays historical bars through the trading engine, one
// symbol at a time, compounding each symbol's cash across trading days.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/broker"
	"github.com/derekmborges/algorithmic-trading/internal/engine"
	"github.com/derekmborges/algorithmic-trading/internal/logger"
	"github.com/derekmborges/algorithmic-trading/internal/strategy"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// Driver runs a full backtest from a Config: load bars, replay them through
// the engine day by day, aggregate daily returns and write results.
type Driver struct {
	cfg    Config
	logger *logger.Logger
	store  *RecordStore
}

// NewDriver validates the config and prepares the record store.
func NewDriver(cfg Config, log *logger.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	store, err := NewRecordStore(log)
	if err != nil {
		return nil, err
	}

	return &Driver{
		cfg:    cfg,
		logger: log,
		store:  store,
	}, nil
}

// Store exposes the record store for inspection after a run.
func (d *Driver) Store() *RecordStore {
	return d.store
}

// Run replays every configured symbol and returns the per-symbol results. A
// failing symbol is reported as excluded rather than aborting the run.
func (d *Driver) Run(ctx context.Context) ([]types.SymbolResult, error) {
	source, err := NewBarSource(d.cfg.DataPath)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	evaluator, err := NewEvaluator(d.cfg.Strategy, d.cfg.StrategyConfig)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(d.cfg.Symbols))
	copy(symbols, d.cfg.Symbols)
	sort.Strings(symbols)

	bar := progressbar.Default(int64(len(symbols)))
	bar.Describe(fmt.Sprintf("Replaying %d symbols with %s", len(symbols), evaluator.Name()))

	results := make([]types.SymbolResult, 0, len(symbols))

	for _, symbol := range symbols {
		result, err := d.runSymbol(ctx, source, evaluator, symbol)
		if err != nil {
			d.logger.Warn("symbol excluded from results", zap.String("symbol", symbol), zap.Error(err))

			result = types.SymbolResult{
				Symbol:         symbol,
				StartingCash:   d.cfg.InitialCash,
				EndingCash:     d.cfg.InitialCash,
				Excluded:       true,
				ExcludedReason: err.Error(),
			}
		}

		results = append(results, result)

		_ = bar.Add(1)
	}

	if d.cfg.ResultsPath != "" {
		if err := WriteResults(d.cfg.ResultsPath, results); err != nil {
			return nil, err
		}

		if err := d.store.Write(d.cfg.ResultsPath); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// runSymbol replays one symbol sequentially through its trading days. The
// symbol's cash compounds: each day's realized profit is added before the
// next day starts.
func (d *Driver) runSymbol(ctx context.Context, source *BarSource, evaluator strategy.Evaluator, symbol string) (types.SymbolResult, error) {
	bars, err := source.Bars(symbol, d.cfg.StartTime, d.cfg.EndTime)
	if err != nil {
		return types.SymbolResult{}, err
	}

	if len(bars) == 0 {
		return types.SymbolResult{}, errors.Newf(errors.ErrCodeBacktestNoData, "no bars for %s", symbol)
	}

	loc, err := time.LoadLocation(d.cfg.Timezone)
	if err != nil {
		return types.SymbolResult{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid timezone", err)
	}

	days := groupByDay(bars, loc)

	hist := newReplayHistory(symbol)
	ledger := engine.NewLedger()
	executor := broker.NewSimulatedExecutor()

	cash := decimal.NewFromFloat(d.cfg.InitialCash)

	// A bounded window starts with the prior day's close already known when
	// the data file carries bars before it; otherwise the first day trades
	// without one and daily-change entry conditions stay closed.
	first := days[0][0].Time.In(loc)
	dayStart := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)

	prevClose, err := source.LastCloseBefore(symbol, dayStart)
	if err != nil {
		return types.SymbolResult{}, err
	}

	var daily []types.DailyReturn

	for _, day := range days {
		session, err := d.cfg.SessionFor(day[0].Time)
		if err != nil {
			return types.SymbolResult{}, err
		}

		hist.StartSession(prevClose)

		dayCash, _ := cash.Float64()

		eng, err := engine.NewEngine(d.cfg.Engine, session, []string{symbol}, engine.Deps{
			Evaluator: evaluator,
			Executor:  executor,
			Ledger:    ledger,
			Sizer:     engine.CashSizer{},
			History:   hist,
			Account: func() broker.AccountState {
				return broker.AccountState{Cash: dayCash, PortfolioValue: dayCash}
			},
			Logger:   d.logger,
			Recorder: d.store,
		})
		if err != nil {
			return types.SymbolResult{}, err
		}

		for _, b := range day {
			hist.Append(b)
			executor.ObserveBar(b)

			if err := eng.OnBar(ctx, b); err != nil {
				return types.SymbolResult{}, errors.Wrapf(errors.ErrCodeBacktestSymbolFailed, err, "replay failed for %s at %s", symbol, b.Time)
			}

			for _, update := range executor.Drain() {
				if err := eng.OnOrderUpdate(ctx, update); err != nil {
					return types.SymbolResult{}, errors.Wrapf(errors.ErrCodeBacktestSymbolFailed, err, "fill handling failed for %s", symbol)
				}
			}
		}

		// Data gaps can end a day before the liquidation window; close the
		// leftover position at the last bar so daily accounting stays flat.
		if position := ledger.Position(symbol); position.IsSome() {
			last := day[len(day)-1]

			reason := types.Reason{Reason: types.OrderReasonSessionClose, Message: "liquidated at final bar"}
			if _, err := ledger.ApplyFill(symbol, types.SideSell, position.Unwrap().Quantity, last.Close, last.Time, reason); err != nil {
				return types.SymbolResult{}, err
			}
		}

		records := ledger.TakeRecords()

		profits := decimal.Zero
		for _, record := range records {
			profits = profits.Add(decimal.NewFromFloat(record.PnL()))
		}

		percent := decimal.Zero
		if !cash.IsZero() {
			percent = profits.Div(cash).Mul(decimal.NewFromInt(100))
		}

		percentFloat, _ := percent.Float64()

		daily = append(daily, types.DailyReturn{
			Symbol:  symbol,
			Date:    day[0].Time.In(loc).Format("2006-01-02"),
			Percent: percentFloat,
			Trades:  len(records),
		})

		cash = cash.Add(profits)
		prevClose = optional.Some(day[len(day)-1].Close)
	}

	endingCash, _ := cash.Float64()

	return types.SymbolResult{
		Symbol:       symbol,
		StartingCash: d.cfg.InitialCash,
		EndingCash:   endingCash,
		Summary:      BuildSummary(daily),
	}, nil
}

// NewEvaluator builds the configured evaluator from its inline YAML config.
func NewEvaluator(name, config string) (strategy.Evaluator, error) {
	switch name {
	case "momentum":
		return strategy.NewMomentumEvaluatorFromYAML(config)
	case "obv":
		return strategy.NewOBVEvaluatorFromYAML(config)
	default:
		return nil, errors.Newf(errors.ErrCodeBacktestConfigError, "unknown strategy %q", name)
	}
}

// groupByDay splits bars into per-trading-day groups, preserving order.
// Bars arrive time-sorted from the source.
func groupByDay(bars []types.Bar, loc *time.Location) [][]types.Bar {
	var days [][]types.Bar

	currentDay := ""

	for _, b := range bars {
		day := b.Time.In(loc).Format("2006-01-02")
		if day != currentDay {
			days = append(days, nil)
			currentDay = day
		}

		days[len(days)-1] = append(days[len(days)-1], b)
	}

	return days
}
