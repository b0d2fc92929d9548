// Package indicator provides technical indicator calculations.
package indicator

import (
	"github.com/shopspring/decimal"
)

// SMA is a rolling simple moving average over a fixed window.
type SMA struct {
	period int
	window []decimal.Decimal
	head   int
	seen   int
	sum    decimal.Decimal
}

// NewSMA creates a simple moving average calculator.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]decimal.Decimal, period),
	}
}

// Update pushes a value into the window and returns the current average.
// Returns zero until the window is filled.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	s.sum = s.sum.Sub(s.window[s.head]).Add(value)
	s.window[s.head] = value
	s.head = (s.head + 1) % s.period
	if s.seen < s.period {
		s.seen++
	}
	return s.Current()
}

// Current returns the current average without adding new data.
func (s *SMA) Current() decimal.Decimal {
	if s.seen < s.period {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Ready reports whether the window is filled.
func (s *SMA) Ready() bool {
	return s.seen >= s.period
}
