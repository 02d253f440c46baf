package feed

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/aleynatasdemir/QuantTrade/internal/logger"
	"github.com/aleynatasdemir/QuantTrade/internal/types"
	"github.com/aleynatasdemir/QuantTrade/pkg/errors"
)

// DuckDBFeed serves both the price and score feeds from DuckDB views over
// CSV or Parquet files. All lookups are SQL queries, so the same engine
// handles datasets that do not fit comfortably in memory.
type DuckDBFeed struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBFeed opens an in-memory DuckDB instance for feed queries.
func NewDuckDBFeed(log *logger.Logger) (*DuckDBFeed, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBFeed{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// readerFor maps a data file to the DuckDB table function that reads it.
func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return fmt.Sprintf("read_parquet('%s')", path), nil
	case ".csv":
		return fmt.Sprintf("read_csv_auto('%s')", path), nil
	default:
		return "", errors.Newf(errors.ErrCodeFeedLoadFailed, "unsupported feed file type: %s", path)
	}
}

// Initialize creates the daily_bars and scores views and validates that both
// feeds are present and non-empty. It fails fast before any simulation step
// can run.
func (d *DuckDBFeed) Initialize(pricesPath string, scoresPath string) error {
	d.logger.Debug("Initializing DuckDB feed",
		zap.String("prices", pricesPath),
		zap.String("scores", scoresPath),
	)

	pricesReader, err := readerFor(pricesPath)
	if err != nil {
		return err
	}

	scoresReader, err := readerFor(scoresPath)
	if err != nil {
		return err
	}

	// Using raw SQL: Squirrel has no CREATE VIEW syntax.
	_, err = d.db.Exec(fmt.Sprintf(`
		CREATE OR REPLACE VIEW daily_bars AS
		SELECT
			CAST(symbol AS VARCHAR) AS symbol,
			CAST(date AS TIMESTAMP) AS date,
			CAST(open AS DOUBLE) AS open,
			CAST(high AS DOUBLE) AS high,
			CAST(low AS DOUBLE) AS low,
			CAST(close AS DOUBLE) AS close,
			CAST(volume AS DOUBLE) AS volume
		FROM %s;
	`, pricesReader))
	if err != nil {
		return errors.Wrap(errors.ErrCodeFeedLoadFailed, "failed to load price feed", err)
	}

	_, err = d.db.Exec(fmt.Sprintf(`
		CREATE OR REPLACE VIEW scores AS
		SELECT
			CAST(date AS TIMESTAMP) AS date,
			CAST(symbol AS VARCHAR) AS symbol,
			CAST(score AS DOUBLE) AS score
		FROM %s;
	`, scoresReader))
	if err != nil {
		return errors.Wrap(errors.ErrCodeFeedLoadFailed, "failed to load score feed", err)
	}

	var barCount int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM daily_bars`).Scan(&barCount); err != nil {
		return errors.Wrap(errors.ErrCodeMalformedFeedData, "price feed is not readable", err)
	}

	if barCount == 0 {
		return errors.New(errors.ErrCodeEmptyPriceFeed, "price feed contains no bars")
	}

	var scoreCount int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM scores`).Scan(&scoreCount); err != nil {
		return errors.Wrap(errors.ErrCodeMalformedFeedData, "score feed is not readable", err)
	}

	if scoreCount == 0 {
		return errors.New(errors.ErrCodeEmptyScoreFeed, "score feed contains no candidates")
	}

	d.logger.Info("Feed initialized",
		zap.Int("bars", barCount),
		zap.Int("scores", scoreCount),
	)

	return nil
}

// Symbols implements PriceFeed.
func (d *DuckDBFeed) Symbols() ([]string, error) {
	rows, err := d.sq.
		Select("DISTINCT symbol").
		From("daily_bars").
		OrderBy("symbol").
		RunWith(d.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "error iterating symbols", err)
	}

	return symbols, nil
}

// TradingDays implements PriceFeed.
func (d *DuckDBFeed) TradingDays(start optional.Option[time.Time], end optional.Option[time.Time]) ([]time.Time, error) {
	query := d.sq.
		Select("DISTINCT date").
		From("daily_bars").
		OrderBy("date")

	if start.IsSome() {
		query = query.Where(squirrel.GtOrEq{"date": Day(start.Unwrap())})
	}

	if end.IsSome() {
		query = query.Where(squirrel.LtOrEq{"date": Day(end.Unwrap())})
	}

	rows, err := query.RunWith(d.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to query trading days", err)
	}
	defer rows.Close()

	var days []time.Time

	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to scan trading day", err)
		}

		days = append(days, Day(day))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "error iterating trading days", err)
	}

	return days, nil
}

// History implements PriceFeed.
func (d *DuckDBFeed) History(symbol string) ([]types.DailyBar, error) {
	rows, err := d.sq.
		Select("symbol", "date", "open", "high", "low", "close", "volume").
		From("daily_bars").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("date").
		RunWith(d.db).
		Query()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeFeedQueryFailed, err, "failed to query history for %s", symbol)
	}
	defer rows.Close()

	var bars []types.DailyBar

	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "error iterating bars", err)
	}

	return bars, nil
}

// BarOn implements PriceFeed.
func (d *DuckDBFeed) BarOn(symbol string, day time.Time) (optional.Option[types.DailyBar], error) {
	row := d.sq.
		Select("symbol", "date", "open", "high", "low", "close", "volume").
		From("daily_bars").
		Where(squirrel.Eq{"symbol": symbol, "date": Day(day)}).
		RunWith(d.db).
		QueryRow()

	var bar types.DailyBar

	err := row.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err == sql.ErrNoRows {
		return optional.None[types.DailyBar](), nil
	}

	if err != nil {
		return optional.None[types.DailyBar](), errors.Wrapf(errors.ErrCodeFeedQueryFailed, err, "failed to query bar for %s", symbol)
	}

	bar.Date = Day(bar.Date)

	return optional.Some(bar), nil
}

// CandidatesOn implements ScoreFeed.
func (d *DuckDBFeed) CandidatesOn(day time.Time) ([]types.Candidate, error) {
	rows, err := d.sq.
		Select("date", "symbol", "score").
		From("scores").
		Where(squirrel.Eq{"date": Day(day)}).
		OrderBy("score DESC", "symbol ASC").
		RunWith(d.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to query candidates", err)
	}
	defer rows.Close()

	var candidates []types.Candidate

	for rows.Next() {
		var c types.Candidate
		if err := rows.Scan(&c.Date, &c.Symbol, &c.Score); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to scan candidate", err)
		}

		c.Date = Day(c.Date)
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFeedQueryFailed, "error iterating candidates", err)
	}

	return candidates, nil
}

// Close releases the underlying database.
func (d *DuckDBFeed) Close() error {
	return d.db.Close()
}

func scanBar(rows *sql.Rows) (types.DailyBar, error) {
	var bar types.DailyBar

	err := rows.Scan(&bar.Symbol, &bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
	if err != nil {
		return types.DailyBar{}, errors.Wrap(errors.ErrCodeFeedQueryFailed, "failed to scan bar", err)
	}

	bar.Date = Day(bar.Date)

	return bar, nil
}

var (
	_ PriceFeed = (*DuckDBFeed)(nil)
	_ ScoreFeed = (*DuckDBFeed)(nil)
)
