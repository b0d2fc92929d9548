package indicator

import (
	"github.com/shopspring/decimal"
)

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
	line   decimal.Decimal
	sig    decimal.Decimal
}

// NewMACD creates a new MACD calculator with the given periods,
// conventionally 12/26/9.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

// Update adds a new close value and returns the MACD line and signal line.
func (m *MACD) Update(close decimal.Decimal) (line, signal decimal.Decimal) {
	fast := m.fast.Update(close)
	slow := m.slow.Update(close)
	m.line = fast.Sub(slow)
	m.sig = m.signal.Update(m.line)
	return m.line, m.sig
}

// Line returns the current MACD line value.
func (m *MACD) Line() decimal.Decimal {
	return m.line
}

// Signal returns the current signal line value.
func (m *MACD) Signal() decimal.Decimal {
	return m.sig
}

// Histogram returns MACD line minus signal line.
func (m *MACD) Histogram() decimal.Decimal {
	return m.line.Sub(m.sig)
}

// Ready returns true once the slow EMA has seen a full period.
func (m *MACD) Ready() bool {
	return m.slow.Ready()
}
