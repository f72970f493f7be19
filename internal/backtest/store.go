package backtest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/derekmborges/algorithmic-trading/internal/logger"
	"github.com/derekmborges/algorithmic-trading/internal/types"
	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// RecordStore persists orders and closed trades in an in-memory DuckDB
// database and exports them to Parquet at the end of the run. It implements
// engine.Recorder.
type RecordStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewRecordStore opens an in-memory DuckDB database and creates the tables.
func NewRecordStore(log *logger.Logger) (*RecordStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to open record store", err)
	}

	s := &RecordStore{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *RecordStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT,
			side TEXT,
			order_type TEXT,
			quantity DOUBLE,
			price DOUBLE,
			timestamp TIMESTAMP,
			status TEXT,
			reason TEXT,
			message TEXT,
			strategy_name TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to create orders table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			symbol TEXT,
			quantity DOUBLE,
			entry_price DOUBLE,
			exit_price DOUBLE,
			opened_at TIMESTAMP,
			closed_at TIMESTAMP,
			reason TEXT,
			message TEXT,
			strategy_name TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to create trades table", err)
	}

	return nil
}

// RecordOrder implements engine.Recorder.
func (s *RecordStore) RecordOrder(order types.Order) error {
	_, err := s.sq.Insert("orders").
		Columns("order_id", "symbol", "side", "order_type", "quantity", "price", "timestamp", "status", "reason", "message", "strategy_name").
		Values(order.OrderID, order.Symbol, string(order.Side), string(order.OrderType), order.Quantity, order.Price, order.Timestamp, string(order.Status), order.Reason.Reason, order.Reason.Message, order.StrategyName).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to record order", err)
	}

	return nil
}

// RecordTrade implements engine.Recorder.
func (s *RecordStore) RecordTrade(trade types.TradeRecord) error {
	_, err := s.sq.Insert("trades").
		Columns("symbol", "quantity", "entry_price", "exit_price", "opened_at", "closed_at", "reason", "message", "strategy_name").
		Values(trade.Symbol, trade.Quantity, trade.EntryPrice, trade.ExitPrice, trade.OpenedAt, trade.ClosedAt, trade.Reason.Reason, trade.Reason.Message, trade.StrategyName).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to record trade", err)
	}

	return nil
}

// GetAllTrades returns every recorded trade ordered by close time.
func (s *RecordStore) GetAllTrades() ([]types.TradeRecord, error) {
	rows, err := s.sq.Select("symbol", "quantity", "entry_price", "exit_price", "opened_at", "closed_at", "reason", "message", "strategy_name").
		From("trades").
		OrderBy("closed_at").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.TradeRecord

	for rows.Next() {
		var t types.TradeRecord
		if err := rows.Scan(&t.Symbol, &t.Quantity, &t.EntryPrice, &t.ExitPrice, &t.OpenedAt, &t.ClosedAt, &t.Reason.Reason, &t.Reason.Message, &t.StrategyName); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan trade", err)
		}

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// CountOrders returns the number of recorded orders for a symbol.
func (s *RecordStore) CountOrders(symbol string) (int, error) {
	var count int

	err := s.sq.Select("COUNT(*)").
		From("orders").
		Where(squirrel.Eq{"symbol": symbol}).
		RunWith(s.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count orders", err)
	}

	return count, nil
}

// Write exports the orders and trades tables to Parquet files under path.
func (s *RecordStore) Write(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to create results directory", err)
	}

	tradesPath := filepath.Join(path, "trades.parquet")
	// COPY does not take placeholders.
	if _, err := s.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath)); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to export trades", err)
	}

	ordersPath := filepath.Join(path, "orders.parquet")
	if _, err := s.db.Exec(fmt.Sprintf(`COPY orders TO '%s' (FORMAT PARQUET)`, ordersPath)); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestStoreFailed, "failed to export orders", err)
	}

	s.logger.Info("exported run records", zap.String("path", path))

	return nil
}

// Cleanup truncates both tables.
func (s *RecordStore) Cleanup() error {
	for _, table := range []string{"orders", "trades"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return errors.Wrapf(errors.ErrCodeBacktestStoreFailed, err, "failed to truncate %s", table)
		}
	}

	return nil
}

// Close releases the database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}
