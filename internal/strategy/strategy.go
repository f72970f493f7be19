// Package strategy defines the decision side of the trading engine: pure
// evaluators that map bar history, indicators and the current position to a
// discrete action. Evaluators never mutate state and never talk to a broker;
// the engine owns execution and the position ledger.
package strategy

import (
	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/internal/types"
)

// History is the evaluator's read-only view of market data. Implementations
// must return bars oldest-first, gap-free, including the bar currently being
// evaluated.
type History interface {
	// Bars returns up to n most recent bars for the symbol.
	Bars(symbol string, n int) []types.Bar
	// SessionBars returns the bars since the current session's market open.
	SessionBars(symbol string) []types.Bar
	// SessionVolume returns the cumulative traded volume since market open.
	SessionVolume(symbol string) float64
	// PrevDayClose returns the previous trading day's closing price, or None
	// when it is not known.
	PrevDayClose(symbol string) optional.Option[float64]
}

// Context carries everything an evaluator may consult for one bar.
type Context struct {
	Session types.SessionWindow
	History History
}

// Decision is an evaluator's recommendation for one bar.
type Decision struct {
	Action types.Action
	// Stop carries the initial stop-loss on Enter, or a proposed trailing
	// raise on None. The ledger enforces monotonicity either way.
	Stop optional.Option[float64]
	// Target carries the take-profit price on Enter. None means the strategy
	// trades without a fixed target.
	Target optional.Option[float64]
	Reason types.Reason
}

// NoAction is the zero decision.
func NoAction() Decision {
	return Decision{
		Action: types.ActionNone,
		Stop:   optional.None[float64](),
		Target: optional.None[float64](),
		Reason: types.Reason{},
	}
}

// Evaluator decides what to do with one symbol on one bar. Implementations
// must be stateless across bars: everything they need arrives through the
// context and the position.
type Evaluator interface {
	// Name returns the strategy name recorded on orders and trades.
	Name() string
	// Evaluate inspects the current bar and returns an action
	// recommendation. An unavailable indicator must yield no action, never a
	// trade. The end-of-session liquidation override is the engine's job and
	// is deliberately absent here.
	Evaluate(ctx Context, bar types.Bar, position optional.Option[types.Position]) (Decision, error)
}
