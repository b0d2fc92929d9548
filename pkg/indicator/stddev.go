package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// StdDev calculates the rolling sample standard deviation.
type StdDev struct {
	period int
	values []decimal.Decimal
	sum    decimal.Decimal
}

// NewStdDev creates a new standard deviation calculator.
func NewStdDev(period int) *StdDev {
	if period < 2 {
		period = 2
	}
	return &StdDev{
		period: period,
		values: make([]decimal.Decimal, 0, period),
	}
}

// Update adds a new value and returns the current standard deviation.
// Returns zero until the period is filled.
func (s *StdDev) Update(value decimal.Decimal) decimal.Decimal {
	s.values = append(s.values, value)
	s.sum = s.sum.Add(value)

	if len(s.values) > s.period {
		s.sum = s.sum.Sub(s.values[0])
		s.values = s.values[1:]
	}

	return s.Current()
}

// Current returns the current standard deviation without adding new data.
func (s *StdDev) Current() decimal.Decimal {
	n := len(s.values)
	if n < s.period {
		return decimal.Zero
	}

	mean := s.sum.Div(decimal.NewFromInt(int64(n)))

	variance := decimal.Zero
	for _, v := range s.values {
		d := v.Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(decimal.NewFromInt(int64(n - 1)))

	// decimal has no Sqrt; precision beyond float64 is not needed here.
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// Ready returns true if enough data points have been collected.
func (s *StdDev) Ready() bool {
	return len(s.values) >= s.period
}

// Mean returns the rolling mean of the window.
func (s *StdDev) Mean() decimal.Decimal {
	if len(s.values) == 0 {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(len(s.values))))
}
