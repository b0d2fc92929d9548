// Package types defines shared types used across the trading system.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of a trade.
type Side int

const (
	SideFlat Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideFlat
	}
}

// TradeState represents the lifecycle state of an open trade.
type TradeState int

const (
	TradeStateOpen TradeState = iota
	TradeStateTrailingArmed
	TradeStateClosing
	TradeStateClosed
)

func (s TradeState) String() string {
	switch s {
	case TradeStateOpen:
		return "OPEN"
	case TradeStateTrailingArmed:
		return "TRAILING_ARMED"
	case TradeStateClosing:
		return "CLOSING"
	case TradeStateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the trade is in a terminal state.
func (s TradeState) IsFinal() bool {
	return s == TradeStateClosed
}

// Candle represents one OHLC bar of price history.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Complete  bool
}

// AccountSnapshot is the broker account state at a point in time.
// Refreshed once per cycle and read-only within it.
type AccountSnapshot struct {
	AccountID       string
	Currency        string
	Balance         decimal.Decimal
	Equity          decimal.Decimal // balance + unrealized P&L
	MarginAvailable decimal.Decimal
	MarginUsed      decimal.Decimal
	UnrealizedPL    decimal.Decimal
	FetchedAt       time.Time
}

// InstrumentSignal is the per-cycle scoring output for one instrument.
// Not persisted; recomputed every cycle.
type InstrumentSignal struct {
	Instrument string
	Direction  Side
	Confidence decimal.Decimal // [0,1]
	ATRPips    decimal.Decimal // volatility, used for stop sizing
	Momentum   decimal.Decimal // signed momentum term
	Reversion  decimal.Decimal // signed mean-reversion term
	Reason     string
}

// OpenTrade is the record of a live position. The lifecycle manager owns
// it from fill confirmation until close confirmation; it is mutated only
// through lifecycle transitions.
type OpenTrade struct {
	ID             string          `json:"id"`
	Instrument     string          `json:"instrument"`
	Side           Side            `json:"side"`
	Units          int64           `json:"units"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	StopLoss       decimal.Decimal `json:"stop_loss"`
	TakeProfit     decimal.Decimal `json:"take_profit"`
	TrailingMark   decimal.Decimal `json:"trailing_mark"` // favorable high-water price, monotonic
	OpenedAt       time.Time       `json:"opened_at"`
	UnrealizedPips decimal.Decimal `json:"unrealized_pips"`
	State          TradeState      `json:"state"`
	CloseAttempts  int             `json:"close_attempts"`
}

// ClosedTrade is the audit record of a completed trade.
type ClosedTrade struct {
	ID           string
	Instrument   string
	Side         Side
	Units        int64
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	OpenedAt     time.Time
	ClosedAt     time.Time
	RealizedPips decimal.Decimal
	RealizedPL   decimal.Decimal
	ExitReason   string
}

// Won returns true if the trade closed at a profit.
func (t ClosedTrade) Won() bool {
	return t.RealizedPips.GreaterThan(decimal.Zero)
}

// PerformanceRecord tracks per-instrument outcomes and the rolling
// confidence weight used to bias future scoring.
type PerformanceRecord struct {
	Wins   int             `json:"wins"`
	Losses int             `json:"losses"`
	Weight decimal.Decimal `json:"weight"`
}

// InstrumentSpec defines the trading specifications of a currency pair.
type InstrumentSpec struct {
	Symbol    string
	PipSize   decimal.Decimal // price increment of one pip
	PipValue  decimal.Decimal // account-currency value of one pip per unit
	MinUnits  int64           // minimum tradeable increment
	MaxUnits  int64
	Precision int32 // display precision for prices
}

var (
	pip4 = decimal.RequireFromString("0.0001")
	pip2 = decimal.RequireFromString("0.01")
)

// Specifications for the major pairs the bot trades. JPY-quoted pairs
// use a 0.01 pip, everything else 0.0001.
var instrumentSpecs = map[string]InstrumentSpec{
	"EUR_USD": {Symbol: "EUR_USD", PipSize: pip4, PipValue: pip4, MinUnits: 1, MaxUnits: 100000, Precision: 5},
	"GBP_USD": {Symbol: "GBP_USD", PipSize: pip4, PipValue: pip4, MinUnits: 1, MaxUnits: 100000, Precision: 5},
	"AUD_USD": {Symbol: "AUD_USD", PipSize: pip4, PipValue: pip4, MinUnits: 1, MaxUnits: 100000, Precision: 5},
	"NZD_USD": {Symbol: "NZD_USD", PipSize: pip4, PipValue: pip4, MinUnits: 1, MaxUnits: 100000, Precision: 5},
	"USD_JPY": {Symbol: "USD_JPY", PipSize: pip2, PipValue: pip2, MinUnits: 1, MaxUnits: 100000, Precision: 3},
	"USD_CHF": {Symbol: "USD_CHF", PipSize: pip4, PipValue: pip4, MinUnits: 1, MaxUnits: 100000, Precision: 5},
	"USD_CAD": {Symbol: "USD_CAD", PipSize: pip4, PipValue: pip4, MinUnits: 1, MaxUnits: 100000, Precision: 5},
}

// GetInstrumentSpec returns the specification for a symbol.
func GetInstrumentSpec(symbol string) (InstrumentSpec, bool) {
	spec, ok := instrumentSpecs[symbol]
	return spec, ok
}

// Instruments returns all known instrument symbols.
func Instruments() []string {
	out := make([]string, 0, len(instrumentSpecs))
	for sym := range instrumentSpecs {
		out = append(out, sym)
	}
	return out
}

// PipsBetween converts the signed price move from 'from' to 'to' into pips.
func (s InstrumentSpec) PipsBetween(from, to decimal.Decimal) decimal.Decimal {
	return to.Sub(from).Div(s.PipSize)
}

// PriceAtPips returns the price offset from base by the given pip count,
// in the favorable direction for the side.
func (s InstrumentSpec) PriceAtPips(base, pips decimal.Decimal, side Side) decimal.Decimal {
	delta := pips.Mul(s.PipSize)
	if side == SideShort {
		return base.Sub(delta)
	}
	return base.Add(delta)
}

// UnrealizedPips returns the favorable pip move of a trade at the given
// price. Positive means profit for either side.
func UnrealizedPips(spec InstrumentSpec, side Side, entry, current decimal.Decimal) decimal.Decimal {
	pips := spec.PipsBetween(entry, current)
	if side == SideShort {
		return pips.Neg()
	}
	return pips
}
