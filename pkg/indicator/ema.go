package indicator

import (
	"github.com/shopspring/decimal"
)

// EMA calculates Exponential Moving Average.
// Seeded with the first value, smoothing factor 2/(period+1).
type EMA struct {
	period int
	alpha  decimal.Decimal
	value  decimal.Decimal
	count  int
}

// NewEMA creates a new EMA calculator with the given period.
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	two := decimal.NewFromInt(2)
	return &EMA{
		period: period,
		alpha:  two.Div(decimal.NewFromInt(int64(period + 1))),
	}
}

// Update adds a new value and returns the current EMA.
func (e *EMA) Update(value decimal.Decimal) decimal.Decimal {
	if e.count == 0 {
		e.value = value
	} else {
		// ema = alpha*value + (1-alpha)*ema
		e.value = e.value.Add(e.alpha.Mul(value.Sub(e.value)))
	}
	e.count++
	return e.value
}

// Current returns the current EMA value without adding new data.
func (e *EMA) Current() decimal.Decimal {
	return e.value
}

// Ready returns true once the EMA has seen at least its period of values.
func (e *EMA) Ready() bool {
	return e.count >= e.period
}
