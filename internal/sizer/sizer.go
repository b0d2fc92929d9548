// Package sizer converts signals and risk budgets into position plans.
package sizer

import (
	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// Config holds position sizing settings.
type Config struct {
	ATRStopMultiple decimal.Decimal // stop distance as ATR multiple
	MinStopPips     decimal.Decimal
	MaxStopPips     decimal.Decimal
	MinRewardRisk   decimal.Decimal // take profit at this multiple of the stop distance
}

// DefaultConfig returns the standard sizing settings.
func DefaultConfig() Config {
	return Config{
		ATRStopMultiple: decimal.RequireFromString("1.5"),
		MinStopPips:     decimal.NewFromInt(12),
		MaxStopPips:     decimal.NewFromInt(45),
		MinRewardRisk:   decimal.RequireFromString("1.2"),
	}
}

// Plan is a fully-specified order proposal, or a rejection with reason.
type Plan struct {
	Units        int64
	StopPips     decimal.Decimal
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
	RiskAmount   decimal.Decimal // account-currency amount at risk
	Valid        bool
	RejectReason string
}

// PositionSizer calculates position size from risk parameters.
type PositionSizer struct {
	cfg Config
}

// NewPositionSizer creates a position sizer.
func NewPositionSizer(cfg Config) *PositionSizer {
	return &PositionSizer{cfg: cfg}
}

// Size derives the stop distance from volatility, sizes the position to
// risk exactly equity*riskFraction at that stop, and floors the result to
// the instrument's minimum increment. A size that floors below the
// minimum is rejected, never rounded up.
func (p *PositionSizer) Size(
	signal types.InstrumentSignal,
	riskFraction decimal.Decimal,
	equity decimal.Decimal,
	entryPrice decimal.Decimal,
	spec types.InstrumentSpec,
) Plan {
	plan := Plan{}

	if signal.Direction == types.SideFlat {
		plan.RejectReason = "no direction"
		return plan
	}
	if equity.LessThanOrEqual(decimal.Zero) {
		plan.RejectReason = "equity must be positive"
		return plan
	}
	if riskFraction.LessThanOrEqual(decimal.Zero) {
		plan.RejectReason = "risk fraction must be positive"
		return plan
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		plan.RejectReason = "entry price must be positive"
		return plan
	}

	stopPips := signal.ATRPips.Mul(p.cfg.ATRStopMultiple)
	if stopPips.LessThan(p.cfg.MinStopPips) {
		stopPips = p.cfg.MinStopPips
	}
	if stopPips.GreaterThan(p.cfg.MaxStopPips) {
		stopPips = p.cfg.MaxStopPips
	}
	plan.StopPips = stopPips

	// units = (equity * riskFraction) / (stopPips * pipValue)
	riskBudget := equity.Mul(riskFraction)
	riskPerUnit := stopPips.Mul(spec.PipValue)
	if riskPerUnit.IsZero() {
		plan.RejectReason = "zero risk per unit"
		return plan
	}

	rawUnits := riskBudget.Div(riskPerUnit).IntPart()

	// Floor to the instrument's minimum increment.
	units := (rawUnits / spec.MinUnits) * spec.MinUnits
	if units < spec.MinUnits {
		plan.RejectReason = "size below minimum tradeable increment"
		return plan
	}
	if units > spec.MaxUnits {
		units = spec.MaxUnits
	}

	plan.Units = units
	plan.RiskAmount = riskPerUnit.Mul(decimal.NewFromInt(units))

	// Stop on the adverse side, target at the reward:risk multiple.
	adverse := signal.Direction.Opposite()
	plan.StopLoss = spec.PriceAtPips(entryPrice, stopPips, adverse)
	plan.TakeProfit = spec.PriceAtPips(entryPrice, stopPips.Mul(p.cfg.MinRewardRisk), signal.Direction)
	plan.Valid = true

	return plan
}
