package indicator

import (
	"github.com/shopspring/decimal"
)

// ATR is a rolling average true range. True range widens the plain
// high-low span by any gap left from the previous close, so overnight
// jumps count as volatility too.
type ATR struct {
	period    int
	prevClose decimal.Decimal
	window    []decimal.Decimal
	head      int
	seen      int
	sum       decimal.Decimal
}

// NewATR creates an average true range calculator.
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{
		period: period,
		window: make([]decimal.Decimal, period),
	}
}

// Update folds one bar into the range window and returns the current ATR.
// Returns zero until the window is filled.
func (a *ATR) Update(high, low, close decimal.Decimal) decimal.Decimal {
	tr := high.Sub(low)
	if a.seen > 0 {
		tr = decimal.Max(tr, high.Sub(a.prevClose).Abs(), low.Sub(a.prevClose).Abs())
	}
	a.prevClose = close

	a.sum = a.sum.Sub(a.window[a.head]).Add(tr)
	a.window[a.head] = tr
	a.head = (a.head + 1) % a.period
	if a.seen < a.period {
		a.seen++
	}
	return a.Current()
}

// Current returns the current ATR without adding new data.
func (a *ATR) Current() decimal.Decimal {
	if a.seen < a.period {
		return decimal.Zero
	}
	return a.sum.Div(decimal.NewFromInt(int64(a.period)))
}

// Ready reports whether the window is filled.
func (a *ATR) Ready() bool {
	return a.seen >= a.period
}
