// Package statestore persists the bot's root state document durably.
package statestore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// CurrentVersion is the state document schema version.
const CurrentVersion = 1

// Performance weight adjustments applied on trade close.
var (
	weightDefault = decimal.RequireFromString("1.0")
	weightOnWin   = decimal.RequireFromString("0.05")
	weightOnLoss  = decimal.RequireFromString("0.10")
	weightCeil    = decimal.RequireFromString("1.5")
	weightFloor   = decimal.RequireFromString("0.5")
)

// BotState is the root aggregate persisted as a whole document. Only the
// cycle engine goroutine mutates it; everything else reads snapshots.
type BotState struct {
	Version           int                                 `json:"version"`
	Day               string                              `json:"day"` // UTC trading day, 2006-01-02
	StartOfDayEquity  decimal.Decimal                     `json:"start_of_day_equity"`
	DailyRealizedPL   decimal.Decimal                     `json:"daily_realized_pl"`
	WinsToday         int                                 `json:"wins_today"`
	LossesToday       int                                 `json:"losses_today"`
	ConsecutiveLosses int                                 `json:"consecutive_losses"`
	PeakEquity        decimal.Decimal                     `json:"peak_equity"`
	OpenTrades        map[string]*types.OpenTrade         `json:"open_trades"`
	Performance       map[string]*types.PerformanceRecord `json:"performance"`
	SkippedExecutions int64                               `json:"skipped_executions"`
	LastCycleAt       time.Time                           `json:"last_cycle_at"`
}

// NewBotState creates an empty state for first boot.
func NewBotState() *BotState {
	return &BotState{
		Version:     CurrentVersion,
		OpenTrades:  make(map[string]*types.OpenTrade),
		Performance: make(map[string]*types.PerformanceRecord),
	}
}

// RollDay resets the daily counters when the UTC trading day changes.
// Returns true on rollover.
func (s *BotState) RollDay(now time.Time, equity decimal.Decimal) bool {
	day := now.UTC().Format("2006-01-02")
	if s.Day == day {
		return false
	}
	s.Day = day
	s.StartOfDayEquity = equity
	s.DailyRealizedPL = decimal.Zero
	s.WinsToday = 0
	s.LossesToday = 0
	return true
}

// PerformanceFor returns the record for an instrument, creating a
// neutral one on first use.
func (s *BotState) PerformanceFor(instrument string) *types.PerformanceRecord {
	if s.Performance == nil {
		s.Performance = make(map[string]*types.PerformanceRecord)
	}
	rec, ok := s.Performance[instrument]
	if !ok {
		rec = &types.PerformanceRecord{Weight: weightDefault}
		s.Performance[instrument] = rec
	}
	return rec
}

// ApplyClose folds a confirmed close into the daily counters, the loss
// streak and the instrument's performance weight, and removes the trade
// from the active set.
func (s *BotState) ApplyClose(closed *types.ClosedTrade) {
	delete(s.OpenTrades, closed.ID)

	s.DailyRealizedPL = s.DailyRealizedPL.Add(closed.RealizedPL)

	rec := s.PerformanceFor(closed.Instrument)
	if closed.Won() {
		s.WinsToday++
		s.ConsecutiveLosses = 0
		rec.Wins++
		rec.Weight = rec.Weight.Add(weightOnWin)
		if rec.Weight.GreaterThan(weightCeil) {
			rec.Weight = weightCeil
		}
	} else {
		s.LossesToday++
		s.ConsecutiveLosses++
		rec.Losses++
		rec.Weight = rec.Weight.Sub(weightOnLoss)
		if rec.Weight.LessThan(weightFloor) {
			rec.Weight = weightFloor
		}
	}
}

// AddTrade registers a newly-opened trade.
func (s *BotState) AddTrade(trade *types.OpenTrade) {
	if s.OpenTrades == nil {
		s.OpenTrades = make(map[string]*types.OpenTrade)
	}
	s.OpenTrades[trade.ID] = trade
}

// validate checks structural invariants after load.
func (s *BotState) validate() error {
	if s.Version <= 0 || s.Version > CurrentVersion {
		return errUnsupportedVersion
	}
	for id, trade := range s.OpenTrades {
		if trade == nil || trade.ID != id {
			return errTradeKeyMismatch
		}
		if trade.State.IsFinal() {
			return errClosedTradeRetained
		}
	}
	return nil
}
