// Package live runs the trading engine against a real broker: it reconciles
// the ledger with the broker at startup, streams bars and execution reports
// into the engine, and shuts down once every symbol is done for the day.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/derekmborges/algorithmic-trading/internal/backtest"
	"github.com/derekmborges/algorithmic-trading/internal/broker"
	"github.com/derekmborges/algorithmic-trading/internal/engine"
	"github.com/derekmborges/algorithmic-trading/internal/logger"
	"github.com/derekmborges/algorithmic-trading/internal/metrics"
	"github.com/derekmborges/algorithmic-trading/internal/notify"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// Config is the live trading configuration.
type Config struct {
	Symbols []string `yaml:"symbols" validate:"required,min=1"`

	Strategy       string `yaml:"strategy" validate:"required,oneof=momentum obv"`
	StrategyConfig string `yaml:"strategy_config"`

	MarketOpen  string `yaml:"market_open"`
	MarketClose string `yaml:"market_close"`
	Timezone    string `yaml:"timezone"`

	Engine engine.Config `yaml:"engine"`

	// RiskFraction of portfolio value put at risk per trade.
	RiskFraction float64 `yaml:"risk_fraction"`
	// ReconcileStopRatio sets the stop on adopted positions: entry * ratio.
	ReconcileStopRatio float64 `yaml:"reconcile_stop_ratio"`
	// MaxHistoryBars bounds the rolling per-symbol bar history.
	MaxHistoryBars int `yaml:"max_history_bars"`

	// WebhookURL receives trade notifications. Empty disables them.
	WebhookURL string `yaml:"webhook_url"`
	// StatusAddr is the listen address of the status/metrics server. Empty
	// disables it.
	StatusAddr string `yaml:"status_addr"`

	Binance broker.BinanceConfig `yaml:"binance"`
}

// DefaultConfig returns the live defaults. Symbols and broker credentials
// must still be provided.
func DefaultConfig() Config {
	return Config{
		MarketOpen:         "09:30",
		MarketClose:        "16:00",
		Timezone:           "America/New_York",
		Engine:             engine.DefaultConfig(),
		RiskFraction:       0.001,
		ReconcileStopRatio: 0.95,
		MaxHistoryBars:     1000,
		StatusAddr:         ":8080",
	}
}

// ParseConfig parses and validates a YAML config document.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse live config", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid live config", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid timezone %q", cfg.Timezone)
	}

	return cfg, nil
}

// sessionFor builds the session window for the trading date of t.
func (c *Config) sessionFor(t time.Time) (types.SessionWindow, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return types.SessionWindow{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid timezone %q", c.Timezone)
	}

	open, err := time.Parse("15:04", c.MarketOpen)
	if err != nil {
		return types.SessionWindow{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid market open time %q", c.MarketOpen)
	}

	closeClock, err := time.Parse("15:04", c.MarketClose)
	if err != nil {
		return types.SessionWindow{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid market close time %q", c.MarketClose)
	}

	day := t.In(loc)

	openAt := time.Date(day.Year(), day.Month(), day.Day(), open.Hour(), open.Minute(), 0, 0, loc)
	closeAt := time.Date(day.Year(), day.Month(), day.Day(), closeClock.Hour(), closeClock.Minute(), 0, 0, loc)

	return types.NewSessionWindow(openAt, closeAt)
}

// Deps are the trader's broker-facing collaborators, injectable for tests.
type Deps struct {
	Executor broker.Executor
	Feed     broker.Feed
	Account  broker.Account
	Updates  broker.UpdateStream
	Prices   broker.PriceSource
	Logger   *logger.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
}

// Trader owns one live trading session.
type Trader struct {
	cfg    Config
	deps   Deps
	logger *logger.Logger

	ledger  *engine.Ledger
	history *rollingHistory

	mu      sync.RWMutex
	account broker.AccountState
}

// NewTrader validates the dependencies and prepares the trader.
func NewTrader(cfg Config, deps Deps) (*Trader, error) {
	if deps.Executor == nil || deps.Feed == nil || deps.Account == nil || deps.Updates == nil || deps.Prices == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "trader requires executor, feed, account, updates and prices")
	}

	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}

	if deps.Notifier == nil {
		if cfg.WebhookURL != "" {
			deps.Notifier = notify.NewWebhookNotifier(cfg.WebhookURL, deps.Logger)
		} else {
			deps.Notifier = notify.NopNotifier{}
		}
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	if cfg.MaxHistoryBars <= 0 {
		cfg.MaxHistoryBars = 1000
	}

	return &Trader{
		cfg:     cfg,
		deps:    deps,
		logger:  deps.Logger,
		ledger:  engine.NewLedger(),
		history: newRollingHistory(cfg.MaxHistoryBars),
	}, nil
}

// NewBinanceTrader wires a trader to a live Binance broker.
func NewBinanceTrader(cfg Config, log *logger.Logger) (*Trader, error) {
	brk, err := broker.NewBinanceBroker(cfg.Binance, log)
	if err != nil {
		return nil, err
	}

	return NewTrader(cfg, Deps{
		Executor: brk,
		Feed:     brk,
		Account:  brk,
		Updates:  brk,
		Prices:   brk,
		Logger:   log,
	})
}

// Ledger exposes the trader's ledger for the status server.
func (t *Trader) Ledger() *engine.Ledger {
	return t.ledger
}

// Metrics exposes the trader's collectors for the status server.
func (t *Trader) Metrics() *metrics.Metrics {
	return t.deps.Metrics
}

// Run executes one trading session: reconcile, stream, liquidate, shut
// down. It returns when every symbol is deregistered or the context ends.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.refreshAccount(ctx); err != nil {
		return err
	}

	if err := t.reconcile(ctx); err != nil {
		return err
	}

	session, err := t.cfg.sessionFor(time.Now())
	if err != nil {
		return err
	}

	evaluator, err := backtest.NewEvaluator(t.cfg.Strategy, t.cfg.StrategyConfig)
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(t.cfg.Engine, session, t.cfg.Symbols, engine.Deps{
		Evaluator: evaluator,
		Executor:  t.deps.Executor,
		Ledger:    t.ledger,
		Sizer:     engine.RiskSizer{RiskFraction: t.cfg.RiskFraction},
		History:   t.history,
		Account:   t.accountState,
		Logger:    t.logger,
		Notifier:  t.deps.Notifier,
		Metrics:   t.deps.Metrics,
	})
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bars, err := t.deps.Feed.Subscribe(streamCtx, t.cfg.Symbols)
	if err != nil {
		return err
	}

	updates, err := t.deps.Updates.OrderUpdates(streamCtx)
	if err != nil {
		return err
	}

	t.history.StartSession()
	t.logger.Info("live session started",
		zap.Strings("symbols", t.cfg.Symbols),
		zap.String("strategy", evaluator.Name()),
		zap.Time("market_close", session.MarketClose),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				return errors.New(errors.ErrCodeFeedFailed, "bar stream closed")
			}

			t.history.Append(bar)

			if err := eng.OnBar(ctx, bar); err != nil {
				t.logger.Error("bar handling failed", zap.String("symbol", bar.Symbol), zap.Error(err))
			}

			if eng.Done() {
				t.logger.Info("all symbols done for the day, shutting down")

				return nil
			}
		case update, ok := <-updates:
			if !ok {
				return errors.New(errors.ErrCodeFeedFailed, "order update stream closed")
			}

			if err := eng.OnOrderUpdate(ctx, update); err != nil {
				t.logger.Error("order update handling failed", zap.String("symbol", update.Symbol), zap.Error(err))
			}
		}
	}
}

func (t *Trader) refreshAccount(ctx context.Context) error {
	state, err := t.deps.Account.GetAccountState(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.account = state
	t.mu.Unlock()

	return nil
}

func (t *Trader) accountState() broker.AccountState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.account
}

// reconcile brings the ledger in line with the broker before trading: any
// outstanding orders are cancelled and broker-held positions for managed
// symbols are adopted with a stop below their entry price.
func (t *Trader) reconcile(ctx context.Context) error {
	if err := t.deps.Account.CancelOpenOrders(ctx, t.cfg.Symbols); err != nil {
		return errors.Wrap(errors.ErrCodeReconcileFailed, "failed to cancel open orders", err)
	}

	positions, err := t.deps.Account.ListOpenPositions(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeReconcileFailed, "failed to list open positions", err)
	}

	managed := make(map[string]bool, len(t.cfg.Symbols))
	for _, s := range t.cfg.Symbols {
		managed[s] = true
	}

	for _, pos := range positions {
		if !managed[pos.Symbol] {
			continue
		}

		entry := pos.AverageEntryPrice()
		if entry <= 0 {
			// No cost basis from the broker; fall back to the current price.
			price, err := t.deps.Prices.LastPrice(ctx, pos.Symbol)
			if err != nil {
				return errors.Wrapf(errors.ErrCodeReconcileFailed, err, "failed to price adopted position %s", pos.Symbol)
			}

			entry = price
		}

		adopted := types.Position{
			Symbol:          pos.Symbol,
			Quantity:        pos.Quantity,
			TotalInQuantity: pos.Quantity,
			TotalInAmount:   pos.Quantity * entry,
			StopLoss:        entry * t.cfg.ReconcileStopRatio,
			Reference:       entry,
			OpenedAt:        time.Now().UTC(),
			StrategyName:    t.cfg.Strategy,
		}

		if err := t.ledger.Adopt(adopted); err != nil {
			return errors.Wrapf(errors.ErrCodeReconcileFailed, err, "failed to adopt position %s", pos.Symbol)
		}

		t.history.SeedPrevClose(pos.Symbol, entry)
		t.logger.Info("adopted broker position",
			zap.String("symbol", pos.Symbol),
			zap.Float64("quantity", pos.Quantity),
			zap.Float64("entry", entry),
			zap.Float64("stop", adopted.StopLoss),
		)
	}

	return nil
}
