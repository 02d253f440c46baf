// Package ledger persists the simulator's output streams in DuckDB: the
// trade log and the daily equity curve. Records are append-only during a
// run and read back in deterministic order for reporting and export.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/aleynatasdemir/QuantTrade/internal/backtest"
	"github.com/aleynatasdemir/QuantTrade/internal/feed"
	"github.com/aleynatasdemir/QuantTrade/internal/logger"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// Ledger is the DuckDB-backed trade and equity store. It implements the
// simulator's Recorder interface.
type Ledger struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewLedger opens an in-memory DuckDB instance for the run's records.
func NewLedger(log *logger.Logger) (*Ledger, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerInitFailed, "failed to open duckdb", err)
	}

	return &Ledger{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the trades and equity_curve tables.
func (l *Ledger) Initialize() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			symbol TEXT,
			entry_date TIMESTAMP,
			entry_price DOUBLE,
			exit_date TIMESTAMP,
			exit_price DOUBLE,
			return_pct DOUBLE,
			exit_reason TEXT,
			days_held INTEGER
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerInitFailed, "failed to create trades table", err)
	}

	_, err = l.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity_curve (
			date TIMESTAMP,
			equity DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerInitFailed, "failed to create equity_curve table", err)
	}

	return nil
}

// RecordTrade appends one closed trade.
func (l *Ledger) RecordTrade(trade types.Trade) error {
	_, err := l.sq.
		Insert("trades").
		Columns("symbol", "entry_date", "entry_price", "exit_date", "exit_price", "return_pct", "exit_reason", "days_held").
		Values(
			trade.Symbol,
			trade.EntryDate,
			trade.EntryPrice,
			trade.ExitDate,
			trade.ExitPrice,
			trade.ReturnPct,
			string(trade.ExitReason),
			trade.DaysHeld,
		).
		RunWith(l.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeLedgerWriteFailed, err, "failed to record trade for %s", trade.Symbol)
	}

	return nil
}

// RecordEquity appends one daily equity point.
func (l *Ledger) RecordEquity(point types.EquityPoint) error {
	_, err := l.sq.
		Insert("equity_curve").
		Columns("date", "equity").
		Values(point.Date, point.Equity).
		RunWith(l.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerWriteFailed, "failed to record equity point", err)
	}

	return nil
}

// Trades returns all closed trades ordered by exit date, then symbol.
func (l *Ledger) Trades() ([]types.Trade, error) {
	rows, err := l.sq.
		Select("symbol", "entry_date", "entry_price", "exit_date", "exit_price", "return_pct", "exit_reason", "days_held").
		From("trades").
		OrderBy("exit_date", "symbol").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to query trades", err)
	}
	defer rows.Close()

	var trades []types.Trade

	for rows.Next() {
		var (
			t      types.Trade
			reason string
		)

		err := rows.Scan(&t.Symbol, &t.EntryDate, &t.EntryPrice, &t.ExitDate, &t.ExitPrice, &t.ReturnPct, &reason, &t.DaysHeld)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to scan trade", err)
		}

		t.EntryDate = feed.Day(t.EntryDate)
		t.ExitDate = feed.Day(t.ExitDate)
		t.ExitReason = types.ExitReason(reason)
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "error iterating trades", err)
	}

	return trades, nil
}

// EquityCurve returns the equity points ordered by date.
func (l *Ledger) EquityCurve() ([]types.EquityPoint, error) {
	rows, err := l.sq.
		Select("date", "equity").
		From("equity_curve").
		OrderBy("date").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to query equity curve", err)
	}
	defer rows.Close()

	var points []types.EquityPoint

	for rows.Next() {
		var p types.EquityPoint
		if err := rows.Scan(&p.Date, &p.Equity); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to scan equity point", err)
		}

		p.Date = feed.Day(p.Date)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "error iterating equity curve", err)
	}

	return points, nil
}

// ExitReasonCounts returns the trade count per exit reason.
func (l *Ledger) ExitReasonCounts() (map[types.ExitReason]int, error) {
	rows, err := l.sq.
		Select("exit_reason", "COUNT(*)").
		From("trades").
		GroupBy("exit_reason").
		RunWith(l.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to query exit reasons", err)
	}
	defer rows.Close()

	counts := make(map[types.ExitReason]int)

	for rows.Next() {
		var (
			reason string
			count  int
		)

		if err := rows.Scan(&reason, &count); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to scan exit reason count", err)
		}

		counts[types.ExitReason(reason)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "error iterating exit reason counts", err)
	}

	return counts, nil
}

// TradeCount returns the number of closed trades.
func (l *Ledger) TradeCount() (int, error) {
	var count int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to count trades", err)
	}

	return count, nil
}

// Export writes the trade log and equity curve as Parquet files under the
// given directory.
func (l *Ledger) Export(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerExportFailed, "failed to create export directory", err)
	}

	tradesPath := filepath.Join(dir, "trades.parquet")

	_, err := l.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerExportFailed, "failed to export trades", err)
	}

	equityPath := filepath.Join(dir, "equity.parquet")

	_, err = l.db.Exec(fmt.Sprintf(`COPY equity_curve TO '%s' (FORMAT PARQUET)`, equityPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerExportFailed, "failed to export equity curve", err)
	}

	l.logger.Info("Ledger exported",
		zap.String("trades", tradesPath),
		zap.String("equity", equityPath),
	)

	return nil
}

// Cleanup drops all recorded data so the ledger can serve another run.
func (l *Ledger) Cleanup() error {
	for _, table := range []string{"trades", "equity_curve"} {
		if _, err := l.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
			return errors.Wrapf(errors.ErrCodeLedgerInitFailed, err, "failed to drop table %s", table)
		}
	}

	return l.Initialize()
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// FirstTradeDate returns the earliest entry date in the trade log. The
// second return value is false when no trades were recorded.
func (l *Ledger) FirstTradeDate() (time.Time, bool, error) {
	var date sql.NullTime
	if err := l.db.QueryRow(`SELECT MIN(entry_date) FROM trades`).Scan(&date); err != nil {
		return time.Time{}, false, errors.Wrap(errors.ErrCodeLedgerQueryFailed, "failed to query first trade date", err)
	}

	if !date.Valid {
		return time.Time{}, false, nil
	}

	return feed.Day(date.Time), true, nil
}

var _ backtest.Recorder = (*Ledger)(nil)
