package broker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/logger"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

const (
	// binanceDecimalPrecision is the fallback quantity precision. Symbol
	// specific LOT_SIZE filters should override this in production use.
	binanceDecimalPrecision = 8

	listenKeyKeepaliveInterval = 30 * time.Minute
)

// BinanceConfig configures the live Binance adapter.
type BinanceConfig struct {
	APIKey    string `yaml:"api_key" validate:"required"`
	SecretKey string `yaml:"secret_key" validate:"required"`
	// QuoteAsset is the cash currency of the account, e.g. USDT.
	QuoteAsset string `yaml:"quote_asset"`
	// UseTestnet points the client at the Binance testnet.
	UseTestnet bool `yaml:"use_testnet"`
	// Interval is the kline interval streamed to the engine.
	Interval types.Interval `yaml:"interval"`
}

// BinanceBroker implements Executor, Feed and Account against the Binance
// spot API. Order IDs are encoded as "SYMBOL:ID" so cancels can be routed
// without extra state.
type BinanceBroker struct {
	client *binance.Client
	cfg    BinanceConfig
	logger *logger.Logger
}

// NewBinanceBroker creates the adapter.
func NewBinanceBroker(cfg BinanceConfig, log *logger.Logger) (*BinanceBroker, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "binance api key and secret are required")
	}

	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}

	if cfg.Interval == "" {
		cfg.Interval = types.Interval1m
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	if cfg.UseTestnet {
		binance.UseTestnet = true
	}

	return &BinanceBroker{
		client: binance.NewClient(cfg.APIKey, cfg.SecretKey),
		cfg:    cfg,
		logger: log,
	}, nil
}

// SubmitOrder implements Executor.
func (b *BinanceBroker) SubmitOrder(ctx context.Context, intent types.OrderIntent) (string, error) {
	if err := intent.Validate(); err != nil {
		return "", err
	}

	var side binance.SideType

	switch intent.Side {
	case types.SideBuy:
		side = binance.SideTypeBuy
	case types.SideSell:
		side = binance.SideTypeSell
	default:
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order side: %s", intent.Side)
	}

	service := b.client.NewCreateOrderService().
		Symbol(intent.Symbol).
		Side(side).
		Quantity(strconv.FormatFloat(intent.Quantity, 'f', binanceDecimalPrecision, 64))

	switch intent.OrderType {
	case types.OrderTypeMarket:
		service = service.Type(binance.OrderTypeMarket)
	case types.OrderTypeLimit:
		service = service.Type(binance.OrderTypeLimit).
			Price(strconv.FormatFloat(intent.LimitPrice.Unwrap(), 'f', -1, 64)).
			TimeInForce(binance.TimeInForceTypeGTC)
	default:
		return "", errors.Newf(errors.ErrCodeInvalidOrder, "unsupported order type: %s", intent.OrderType)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	return encodeOrderID(intent.Symbol, resp.OrderID), nil
}

// CancelOrder implements Executor.
func (b *BinanceBroker) CancelOrder(ctx context.Context, orderID string) error {
	symbol, id, err := decodeOrderID(orderID)
	if err != nil {
		return err
	}

	_, err = b.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to cancel order on Binance", err)
	}

	return nil
}

// Subscribe implements Feed. Only final klines are forwarded; in-progress
// candles never reach the engine.
func (b *BinanceBroker) Subscribe(ctx context.Context, symbols []string) (<-chan types.Bar, error) {
	pairs := make(map[string]string, len(symbols))
	for _, s := range symbols {
		pairs[s] = string(b.cfg.Interval)
	}

	bars := make(chan types.Bar, len(symbols)*4)

	handler := func(event *binance.WsKlineEvent) {
		if !event.Kline.IsFinal {
			return
		}

		bar, err := klineToBar(event)
		if err != nil {
			b.logger.Warn("dropping malformed kline", zap.String("symbol", event.Symbol), zap.Error(err))

			return
		}

		select {
		case bars <- bar:
		case <-ctx.Done():
		}
	}

	errHandler := func(err error) {
		b.logger.Error("kline stream error", zap.Error(err))
	}

	doneC, stopC, err := binance.WsCombinedKlineServe(pairs, handler, errHandler)
	if err != nil {
		close(bars)

		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to open kline stream", err)
	}

	go func() {
		defer close(bars)

		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
		case <-doneC:
		}
	}()

	return bars, nil
}

// OrderUpdates streams execution reports from the user data stream.
func (b *BinanceBroker) OrderUpdates(ctx context.Context) (<-chan OrderUpdate, error) {
	listenKey, err := b.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to start user data stream", err)
	}

	updates := make(chan OrderUpdate, 16)

	handler := func(event *binance.WsUserDataEvent) {
		if event.Event != binance.UserDataEventTypeExecutionReport {
			return
		}

		update, ok := executionReportToUpdate(event.OrderUpdate)
		if !ok {
			return
		}

		select {
		case updates <- update:
		case <-ctx.Done():
		}
	}

	errHandler := func(err error) {
		b.logger.Error("user data stream error", zap.Error(err))
	}

	doneC, stopC, err := binance.WsUserDataServe(listenKey, handler, errHandler)
	if err != nil {
		close(updates)

		return nil, errors.Wrap(errors.ErrCodeFeedFailed, "failed to open user data stream", err)
	}

	go func() {
		defer close(updates)

		ticker := time.NewTicker(listenKeyKeepaliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				close(stopC)
				<-doneC

				return
			case <-doneC:
				return
			case <-ticker.C:
				if err := b.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
					b.logger.Warn("failed to keep user data stream alive", zap.Error(err))
				}
			}
		}
	}()

	return updates, nil
}

// GetAccountState implements Account. Portfolio value counts only the free
// and locked quote asset; open positions are valued by the live trader from
// its own price history.
func (b *BinanceBroker) GetAccountState(ctx context.Context) (AccountState, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return AccountState{}, errors.Wrap(errors.ErrCodeAccountFailed, "failed to get account info from Binance", err)
	}

	cash := 0.0

	for _, balance := range account.Balances {
		if balance.Asset != b.cfg.QuoteAsset {
			continue
		}

		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)
		cash = free + locked
	}

	return AccountState{Cash: cash, PortfolioValue: cash}, nil
}

// ListOpenPositions implements Account. Binance balances carry no cost
// basis, so the entry fields are zero; reconciliation fills in a stop from
// current prices.
func (b *BinanceBroker) ListOpenPositions(ctx context.Context) ([]types.Position, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAccountFailed, "failed to get account info from Binance", err)
	}

	positions := make([]types.Position, 0)

	for _, balance := range account.Balances {
		if balance.Asset == b.cfg.QuoteAsset {
			continue
		}

		free, _ := strconv.ParseFloat(balance.Free, 64)
		locked, _ := strconv.ParseFloat(balance.Locked, 64)

		total := free + locked
		if total <= 0 {
			continue
		}

		positions = append(positions, types.Position{
			Symbol:   balance.Asset + b.cfg.QuoteAsset,
			Quantity: total,
		})
	}

	return positions, nil
}

// CancelOpenOrders implements Account.
func (b *BinanceBroker) CancelOpenOrders(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		open, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeAccountFailed, err, "failed to list open orders for %s", symbol)
		}

		if len(open) == 0 {
			continue
		}

		if _, err := b.client.NewCancelOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
			return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to cancel open orders for %s", symbol)
		}

		b.logger.Info("cancelled open orders", zap.String("symbol", symbol), zap.Int("count", len(open)))
	}

	return nil
}

// LastPrice implements PriceSource.
func (b *BinanceBroker) LastPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to fetch price for %s", symbol)
	}

	if len(prices) == 0 {
		return 0, errors.Newf(errors.ErrCodeDataNotFound, "no price for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "malformed price for %s", symbol)
	}

	return price, nil
}

func encodeOrderID(symbol string, id int64) string {
	return symbol + ":" + strconv.FormatInt(id, 10)
}

func decodeOrderID(orderID string) (string, int64, error) {
	symbol, idPart, found := strings.Cut(orderID, ":")
	if !found {
		return "", 0, errors.Newf(errors.ErrCodeInvalidParameter, "malformed order id %q", orderID)
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return "", 0, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "malformed order id %q", orderID)
	}

	return symbol, id, nil
}

func klineToBar(event *binance.WsKlineEvent) (types.Bar, error) {
	open, err := strconv.ParseFloat(event.Kline.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid open price", err)
	}

	high, err := strconv.ParseFloat(event.Kline.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid high price", err)
	}

	low, err := strconv.ParseFloat(event.Kline.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid low price", err)
	}

	closePrice, err := strconv.ParseFloat(event.Kline.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid close price", err)
	}

	volume, err := strconv.ParseFloat(event.Kline.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeInvalidBar, "invalid volume", err)
	}

	return types.Bar{
		Symbol: event.Symbol,
		Time:   time.UnixMilli(event.Kline.StartTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func executionReportToUpdate(report binance.WsOrderUpdate) (OrderUpdate, bool) {
	var status types.OrderStatus

	switch report.Status {
	case "NEW":
		status = types.OrderStatusPending
	case "PARTIALLY_FILLED":
		status = types.OrderStatusPartiallyFilled
	case "FILLED":
		status = types.OrderStatusFilled
	case "CANCELED", "EXPIRED":
		status = types.OrderStatusCancelled
	case "REJECTED":
		status = types.OrderStatusRejected
	default:
		return OrderUpdate{}, false
	}

	side := types.SideBuy
	if report.Side == string(binance.SideTypeSell) {
		side = types.SideSell
	}

	filledQty, _ := strconv.ParseFloat(report.LatestVolume, 64)
	fillPrice, _ := strconv.ParseFloat(report.LatestPrice, 64)

	return OrderUpdate{
		OrderID:   encodeOrderID(report.Symbol, report.Id),
		Symbol:    report.Symbol,
		Side:      side,
		Status:    status,
		FilledQty: filledQty,
		FillPrice: fillPrice,
		Timestamp: time.UnixMilli(report.TransactionTime).UTC(),
		Reason:    report.RejectReason,
	}, true
}
