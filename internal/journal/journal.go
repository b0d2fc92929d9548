// Package journal provides the durable audit trail of completed trades
// and equity history, backing the daily and weekly operator reports.
package journal

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// EquityPoint is one persisted equity observation.
type EquityPoint struct {
	Timestamp  time.Time
	Equity     decimal.Decimal
	PeakEquity decimal.Decimal
	Drawdown   decimal.Decimal
	OpenTrades int
	DailyPL    decimal.Decimal
}

// InstrumentResult summarizes closed trades for one instrument.
type InstrumentResult struct {
	Instrument string
	Trades     int
	NetPips    decimal.Decimal
}

// Report aggregates closed trades over a period.
type Report struct {
	From        time.Time
	To          time.Time
	TotalTrades int
	Wins        int
	Losses      int
	NetPips     decimal.Decimal
	NetPL       decimal.Decimal
	WinRate     decimal.Decimal // percentage
	Best        *InstrumentResult
	Worst       *InstrumentResult
}

// Journal defines the interface for the trade audit trail.
type Journal interface {
	SaveTrade(ctx context.Context, trade types.ClosedTrade) error
	SaveEquityPoint(ctx context.Context, point EquityPoint) error
	TradesSince(ctx context.Context, from time.Time) ([]types.ClosedTrade, error)
	Report(ctx context.Context, from, to time.Time) (*Report, error)
	Close() error
}
