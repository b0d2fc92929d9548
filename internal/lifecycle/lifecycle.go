// Package lifecycle manages the exit state machine of open trades.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/gateway"
	"github.com/dommurphy155/Very-last-try/internal/types"
)

// Exit reasons recorded on closed trades.
const (
	ExitMaxLoss      = "max_loss"
	ExitStopLoss     = "stop_loss"
	ExitTimeStop     = "time_stop"
	ExitTrailingStop = "trailing_stop"
	ExitTakeProfit   = "take_profit"
	ExitManual       = "manual"
)

// Config holds exit management settings.
type Config struct {
	// TrailingStopPips is the retrace from the high-water mark that
	// triggers a close once trailing is armed.
	TrailingStopPips decimal.Decimal
	// TrailingArmPips is the profit required before trailing arms.
	TrailingArmPips decimal.Decimal
	// MaxLossPips is a hard cap independent of the static stop, guarding
	// against slippage past it.
	MaxLossPips decimal.Decimal
	// MaxTradeDuration closes any trade held longer than this.
	MaxTradeDuration time.Duration
	// CloseRetryEscalate is the number of consecutive close failures
	// after which the operator is notified.
	CloseRetryEscalate int
}

// DefaultConfig returns the standard exit settings.
func DefaultConfig() Config {
	return Config{
		TrailingStopPips:   decimal.NewFromInt(15),
		TrailingArmPips:    decimal.NewFromInt(3),
		MaxLossPips:        decimal.NewFromInt(30),
		MaxTradeDuration:   4 * time.Hour,
		CloseRetryEscalate: 3,
	}
}

// Result reports what Advance did with a trade.
type Result struct {
	Closed     *types.ClosedTrade // non-nil when the close was confirmed
	ExitReason string             // set when a close was attempted
	Escalate   bool               // repeated close failures crossed the threshold
}

// Manager owns every OpenTrade from fill to confirmed close.
type Manager struct {
	cfg     Config
	gateway gateway.Gateway
	logger  *slog.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config, gw gateway.Gateway, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, gateway: gw, logger: logger}
}

// Advance runs one lifecycle step for a trade at the given price: update
// the trailing mark, check every exit condition, and submit a close order
// when one holds. A failed close leaves the trade open for retry on the
// next cycle.
func (m *Manager) Advance(ctx context.Context, trade *types.OpenTrade, price decimal.Decimal, now time.Time) (Result, error) {
	spec, ok := types.GetInstrumentSpec(trade.Instrument)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", types.ErrInvalidSymbol, trade.Instrument)
	}

	trade.UnrealizedPips = types.UnrealizedPips(spec, trade.Side, trade.EntryPrice, price)
	m.updateTrailing(trade, spec, price)

	reason, shouldClose := m.CheckExit(trade, spec, price, now)
	if !shouldClose {
		return Result{}, nil
	}

	return m.close(ctx, trade, spec, price, reason)
}

// Close force-closes a trade, used by the operator close-all command.
func (m *Manager) Close(ctx context.Context, trade *types.OpenTrade, price decimal.Decimal) (Result, error) {
	spec, ok := types.GetInstrumentSpec(trade.Instrument)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", types.ErrInvalidSymbol, trade.Instrument)
	}
	trade.UnrealizedPips = types.UnrealizedPips(spec, trade.Side, trade.EntryPrice, price)
	return m.close(ctx, trade, spec, price, ExitManual)
}

// updateTrailing advances the high-water mark and arms trailing once the
// trade is in profit past the arm threshold. The mark only ever moves in
// the favorable direction; it is never reset backwards.
func (m *Manager) updateTrailing(trade *types.OpenTrade, spec types.InstrumentSpec, price decimal.Decimal) {
	switch trade.Side {
	case types.SideLong:
		if price.GreaterThan(trade.TrailingMark) {
			trade.TrailingMark = price
		}
	case types.SideShort:
		if price.LessThan(trade.TrailingMark) {
			trade.TrailingMark = price
		}
	}

	if trade.State == types.TradeStateOpen {
		markProfit := types.UnrealizedPips(spec, trade.Side, trade.EntryPrice, trade.TrailingMark)
		if markProfit.GreaterThanOrEqual(m.cfg.TrailingArmPips) {
			trade.State = types.TradeStateTrailingArmed
			m.logger.Info("trailing stop armed",
				"trade_id", trade.ID,
				"instrument", trade.Instrument,
				"mark", trade.TrailingMark,
			)
		}
	}
}

// CheckExit evaluates the exit conditions in priority order and returns
// the first reason that holds. Pure with respect to the trade; callers
// must have refreshed UnrealizedPips and the trailing mark first.
func (m *Manager) CheckExit(trade *types.OpenTrade, spec types.InstrumentSpec, price decimal.Decimal, now time.Time) (string, bool) {
	// Hard loss cap, independent of the static stop.
	if trade.UnrealizedPips.LessThanOrEqual(m.cfg.MaxLossPips.Neg()) {
		return ExitMaxLoss, true
	}

	// Static stop cross.
	switch trade.Side {
	case types.SideLong:
		if price.LessThanOrEqual(trade.StopLoss) {
			return ExitStopLoss, true
		}
	case types.SideShort:
		if price.GreaterThanOrEqual(trade.StopLoss) {
			return ExitStopLoss, true
		}
	}

	// Time stop.
	if now.Sub(trade.OpenedAt) >= m.cfg.MaxTradeDuration {
		return ExitTimeStop, true
	}

	// Trailing retrace, only once armed.
	if trade.State == types.TradeStateTrailingArmed {
		retrace := types.UnrealizedPips(spec, trade.Side, price, trade.TrailingMark)
		if retrace.GreaterThanOrEqual(m.cfg.TrailingStopPips) {
			return ExitTrailingStop, true
		}
	}

	// Profit target touch.
	if !trade.TakeProfit.IsZero() {
		switch trade.Side {
		case types.SideLong:
			if price.GreaterThanOrEqual(trade.TakeProfit) {
				return ExitTakeProfit, true
			}
		case types.SideShort:
			if price.LessThanOrEqual(trade.TakeProfit) {
				return ExitTakeProfit, true
			}
		}
	}

	return "", false
}

// close submits the close order and builds the audit record on
// confirmation. Failures put the trade back in its previous state so the
// next cycle retries, escalating after repeated failures.
func (m *Manager) close(ctx context.Context, trade *types.OpenTrade, spec types.InstrumentSpec, price decimal.Decimal, reason string) (Result, error) {
	prev := trade.State
	trade.State = types.TradeStateClosing

	res, err := m.gateway.CloseTrade(ctx, trade.ID)
	if err != nil {
		trade.State = prev
		trade.CloseAttempts++

		m.logger.Warn("close order failed",
			"trade_id", trade.ID,
			"instrument", trade.Instrument,
			"reason", reason,
			"attempts", trade.CloseAttempts,
			"err", err,
		)

		escalate := m.cfg.CloseRetryEscalate > 0 && trade.CloseAttempts >= m.cfg.CloseRetryEscalate
		return Result{ExitReason: reason, Escalate: escalate}, err
	}

	trade.State = types.TradeStateClosed

	closed := &types.ClosedTrade{
		ID:           trade.ID,
		Instrument:   trade.Instrument,
		Side:         trade.Side,
		Units:        trade.Units,
		EntryPrice:   trade.EntryPrice,
		ExitPrice:    res.Price,
		OpenedAt:     trade.OpenedAt,
		ClosedAt:     res.ClosedAt,
		RealizedPips: types.UnrealizedPips(spec, trade.Side, trade.EntryPrice, res.Price),
		RealizedPL:   res.RealizedPL,
		ExitReason:   reason,
	}

	m.logger.Info("trade closed",
		"trade_id", trade.ID,
		"instrument", trade.Instrument,
		"reason", reason,
		"pips", closed.RealizedPips.StringFixed(1),
		"pl", closed.RealizedPL.StringFixed(2),
	)

	return Result{Closed: closed, ExitReason: reason}, nil
}
