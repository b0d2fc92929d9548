package indicator

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RSI calculates the Relative Strength Index using a rolling mean of
// gains and losses over the period.
type RSI struct {
	period    int
	prev      decimal.Decimal
	gains     *SMA
	losses    *SMA
	count     int
}

// NewRSI creates a new RSI calculator with the given period.
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{
		period: period,
		gains:  NewSMA(period),
		losses: NewSMA(period),
	}
}

// Update adds a new close value and returns the current RSI in [0,100].
// Returns 50 until enough data points have been collected.
func (r *RSI) Update(close decimal.Decimal) decimal.Decimal {
	if r.count == 0 {
		r.prev = close
		r.count++
		return decimal.NewFromInt(50)
	}

	delta := close.Sub(r.prev)
	r.prev = close
	r.count++

	gain := decimal.Zero
	loss := decimal.Zero
	if delta.GreaterThan(decimal.Zero) {
		gain = delta
	} else {
		loss = delta.Neg()
	}

	avgGain := r.gains.Update(gain)
	avgLoss := r.losses.Update(loss)

	if !r.gains.Ready() {
		return decimal.NewFromInt(50)
	}

	if avgLoss.IsZero() {
		if avgGain.IsZero() {
			return decimal.NewFromInt(50)
		}
		return hundred
	}

	// RSI = 100 - 100/(1+RS)
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// Ready returns true if enough data points have been collected.
func (r *RSI) Ready() bool {
	return r.gains.Ready()
}

// Period returns the RSI period.
func (r *RSI) Period() int {
	return r.period
}
