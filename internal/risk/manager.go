package risk

import (
	"github.com/shopspring/decimal"
)

// Config holds the risk manager limits.
type Config struct {
	MaxDrawdownPct       decimal.Decimal // e.g. 0.10 for 10%
	MaxDailyLossPct      decimal.Decimal // e.g. 0.02 of start-of-day equity
	MaxConsecutiveLosses int             // e.g. 5
	MinRiskFraction      decimal.Decimal // e.g. 0.01
	MaxRiskFraction      decimal.Decimal // e.g. 0.03
}

// DefaultConfig returns a conservative default configuration.
func DefaultConfig() Config {
	return Config{
		MaxDrawdownPct:       decimal.RequireFromString("0.10"),
		MaxDailyLossPct:      decimal.RequireFromString("0.02"),
		MaxConsecutiveLosses: 5,
		MinRiskFraction:      decimal.RequireFromString("0.01"),
		MaxRiskFraction:      decimal.RequireFromString("0.03"),
	}
}

// EvalInput carries everything Evaluate needs. The manager holds no
// hidden state; identical inputs always produce identical decisions.
type EvalInput struct {
	Equity            decimal.Decimal
	PeakEquity        decimal.Decimal
	StartOfDayEquity  decimal.Decimal
	DailyRealizedPL   decimal.Decimal // negative when losing
	ConsecutiveLosses int
	MarginAvailable   decimal.Decimal
	MinPositionMargin decimal.Decimal // margin needed for the smallest allowed position
	Confidence        decimal.Decimal // signal confidence in [0,1]
}

// Decision is the outcome of a risk evaluation.
type Decision struct {
	Allowed      bool
	RiskFraction decimal.Decimal // fraction of equity to risk, zero when halted
	Reason       string          // set when not allowed
}

// Manager evaluates whether a new trade is permitted and at what size.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager with the given limits.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

var half = decimal.RequireFromString("0.5")

// Evaluate applies the fail-closed gates and, when trading is permitted,
// scales the risk fraction linearly with confidence: 0.5 maps to the
// minimum fraction, 1.0 to the maximum, clipped to that range.
func (m *Manager) Evaluate(in EvalInput) Decision {
	if dd := drawdown(in.Equity, in.PeakEquity); dd.GreaterThanOrEqual(m.cfg.MaxDrawdownPct) {
		return Decision{Reason: "max drawdown exceeded"}
	}

	if in.DailyRealizedPL.IsNegative() && !in.StartOfDayEquity.IsZero() {
		lossPct := in.DailyRealizedPL.Neg().Div(in.StartOfDayEquity)
		if lossPct.GreaterThanOrEqual(m.cfg.MaxDailyLossPct) {
			return Decision{Reason: "daily loss limit exceeded"}
		}
	}

	if in.ConsecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		return Decision{Reason: "consecutive loss limit reached"}
	}

	if in.MarginAvailable.LessThan(in.MinPositionMargin) {
		return Decision{Reason: "insufficient margin for minimum position"}
	}

	return Decision{Allowed: true, RiskFraction: m.riskFraction(in.Confidence)}
}

// riskFraction maps confidence onto [MinRiskFraction, MaxRiskFraction].
func (m *Manager) riskFraction(confidence decimal.Decimal) decimal.Decimal {
	span := m.cfg.MaxRiskFraction.Sub(m.cfg.MinRiskFraction)

	// fraction = min + (confidence - 0.5)/0.5 * span
	scaled := confidence.Sub(half).Div(half)
	fraction := m.cfg.MinRiskFraction.Add(scaled.Mul(span))

	if fraction.LessThan(m.cfg.MinRiskFraction) {
		return m.cfg.MinRiskFraction
	}
	if fraction.GreaterThan(m.cfg.MaxRiskFraction) {
		return m.cfg.MaxRiskFraction
	}
	return fraction
}
