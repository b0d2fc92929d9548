package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (and migrates) a journal database at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			instrument TEXT NOT NULL,
			side INTEGER NOT NULL,
			units INTEGER NOT NULL,
			entry_price TEXT NOT NULL,
			exit_price TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			closed_at DATETIME NOT NULL,
			realized_pips TEXT NOT NULL,
			realized_pl TEXT NOT NULL,
			exit_reason TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument)`,

		`CREATE TABLE IF NOT EXISTS equity_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			equity TEXT NOT NULL,
			peak_equity TEXT NOT NULL,
			drawdown TEXT NOT NULL,
			open_trades INTEGER NOT NULL DEFAULT 0,
			daily_pl TEXT NOT NULL DEFAULT '0'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equity_timestamp ON equity_points(timestamp)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// SaveTrade records a completed trade.
func (j *SQLiteJournal) SaveTrade(ctx context.Context, trade types.ClosedTrade) error {
	query := `INSERT OR REPLACE INTO trades
		(id, instrument, side, units, entry_price, exit_price, opened_at, closed_at, realized_pips, realized_pl, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		trade.ID,
		trade.Instrument,
		trade.Side,
		trade.Units,
		trade.EntryPrice.String(),
		trade.ExitPrice.String(),
		trade.OpenedAt,
		trade.ClosedAt,
		trade.RealizedPips.String(),
		trade.RealizedPL.String(),
		trade.ExitReason,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// SaveEquityPoint records one equity observation.
func (j *SQLiteJournal) SaveEquityPoint(ctx context.Context, point EquityPoint) error {
	query := `INSERT INTO equity_points (timestamp, equity, peak_equity, drawdown, open_trades, daily_pl)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		point.Timestamp,
		point.Equity.String(),
		point.PeakEquity.String(),
		point.Drawdown.String(),
		point.OpenTrades,
		point.DailyPL.String(),
	)
	if err != nil {
		return fmt.Errorf("insert equity point: %w", err)
	}
	return nil
}

// TradesSince returns trades closed at or after from, oldest first.
func (j *SQLiteJournal) TradesSince(ctx context.Context, from time.Time) ([]types.ClosedTrade, error) {
	query := `SELECT id, instrument, side, units, entry_price, exit_price, opened_at, closed_at, realized_pips, realized_pl, exit_reason
		FROM trades WHERE closed_at >= ? ORDER BY closed_at`

	rows, err := j.db.QueryContext(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trades []types.ClosedTrade
	for rows.Next() {
		var t types.ClosedTrade
		var entry, exit, pips, pl string

		if err := rows.Scan(&t.ID, &t.Instrument, &t.Side, &t.Units, &entry, &exit, &t.OpenedAt, &t.ClosedAt, &pips, &pl, &t.ExitReason); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		t.EntryPrice, _ = decimal.NewFromString(entry)
		t.ExitPrice, _ = decimal.NewFromString(exit)
		t.RealizedPips, _ = decimal.NewFromString(pips)
		t.RealizedPL, _ = decimal.NewFromString(pl)

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// Report aggregates closed trades in [from, to).
func (j *SQLiteJournal) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	trades, err := j.TradesSince(ctx, from)
	if err != nil {
		return nil, err
	}

	report := &Report{From: from, To: to}
	perInstrument := make(map[string]*InstrumentResult)

	for _, t := range trades {
		if !t.ClosedAt.Before(to) {
			continue
		}
		report.TotalTrades++
		report.NetPips = report.NetPips.Add(t.RealizedPips)
		report.NetPL = report.NetPL.Add(t.RealizedPL)
		if t.Won() {
			report.Wins++
		} else {
			report.Losses++
		}

		res, ok := perInstrument[t.Instrument]
		if !ok {
			res = &InstrumentResult{Instrument: t.Instrument}
			perInstrument[t.Instrument] = res
		}
		res.Trades++
		res.NetPips = res.NetPips.Add(t.RealizedPips)
	}

	if report.TotalTrades > 0 {
		report.WinRate = decimal.NewFromInt(int64(report.Wins)).
			Div(decimal.NewFromInt(int64(report.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}

	for _, res := range perInstrument {
		if report.Best == nil || res.NetPips.GreaterThan(report.Best.NetPips) {
			report.Best = res
		}
		if report.Worst == nil || res.NetPips.LessThan(report.Worst.NetPips) {
			report.Worst = res
		}
	}

	return report, nil
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
