package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

type Side string

type OrderType string

type OrderStatus string

type TimeInForce string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

const (
	TimeInForceDay TimeInForce = "day"
)

const (
	OrderReasonEntrySignal  string = "entry_signal"
	OrderReasonExitSignal   string = "exit_signal"
	OrderReasonStopLoss     string = "stop_loss"
	OrderReasonTakeProfit   string = "take_profit"
	OrderReasonSessionClose string = "session_close"
	OrderReasonReconcile    string = "reconcile"
)

// Reason records why an order was created, e.g. "entry_signal" with a
// human-readable message describing the triggering condition.
type Reason struct {
	Reason  string `yaml:"reason" json:"reason" csv:"reason" validate:"required"`
	Message string `yaml:"message" json:"message" csv:"message"`
}

// OrderIntent is the engine's request to open or close a position. The
// executor (simulated or live) translates it into a broker order and reports
// the outcome asynchronously through OrderUpdate events.
type OrderIntent struct {
	ID           string                   `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol       string                   `yaml:"symbol" json:"symbol" validate:"required"`
	Side         Side                     `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	OrderType    OrderType                `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Quantity     float64                  `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	LimitPrice   optional.Option[float64] `yaml:"limit_price" json:"limit_price"`
	TimeInForce  TimeInForce              `yaml:"time_in_force" json:"time_in_force"`
	Reason       Reason                   `yaml:"reason" json:"reason" validate:"required"`
	StrategyName string                   `yaml:"strategy_name" json:"strategy_name" validate:"required"`
	SubmittedAt  time.Time                `yaml:"submitted_at" json:"submitted_at"`
}

// Validate validates the OrderIntent struct. A limit order must carry a
// positive limit price.
func (oi *OrderIntent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(oi); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order intent", err)
	}

	if oi.OrderType == OrderTypeLimit {
		if oi.LimitPrice.IsNone() || oi.LimitPrice.Unwrap() <= 0 {
			return errors.New(errors.ErrCodeInvalidOrder, "limit order requires a positive limit price")
		}
	}

	return nil
}

// Order is the executed/recorded form of an intent, as stored by the
// backtest record store.
type Order struct {
	OrderID      string      `yaml:"order_id" json:"order_id" csv:"order_id"`
	Symbol       string      `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side         Side        `yaml:"side" json:"side" csv:"side"`
	OrderType    OrderType   `yaml:"order_type" json:"order_type" csv:"order_type"`
	Quantity     float64     `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price        float64     `yaml:"price" json:"price" csv:"price"`
	Timestamp    time.Time   `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Status       OrderStatus `yaml:"status" json:"status" csv:"status"`
	Reason       Reason      `yaml:"reason" json:"reason" csv:"reason"`
	StrategyName string      `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name"`
}
