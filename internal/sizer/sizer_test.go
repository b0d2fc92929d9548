package sizer

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func eurusd(t *testing.T) types.InstrumentSpec {
	t.Helper()
	spec, ok := types.GetInstrumentSpec("EUR_USD")
	if !ok {
		t.Fatal("EUR_USD spec missing")
	}
	return spec
}

func longSignal(atrPips string) types.InstrumentSignal {
	return types.InstrumentSignal{
		Instrument: "EUR_USD",
		Direction:  types.SideLong,
		Confidence: d("0.8"),
		ATRPips:    d(atrPips),
	}
}

func TestSizeRisksTheBudgetAtTheStop(t *testing.T) {
	p := NewPositionSizer(DefaultConfig())
	spec := eurusd(t)

	// ATR 10 pips * 1.5 = 15 pip stop. 10000 * 2% = 200 at risk.
	// 200 / (15 * 0.0001) = 133333 units, capped at the max.
	plan := p.Size(longSignal("10"), d("0.02"), d("10000"), d("1.1000"), spec)
	if !plan.Valid {
		t.Fatalf("plan rejected: %s", plan.RejectReason)
	}
	if !plan.StopPips.Equal(d("15")) {
		t.Errorf("stop pips = %s, want 15", plan.StopPips)
	}
	if plan.Units != spec.MaxUnits {
		t.Errorf("units = %d, want capped at %d", plan.Units, spec.MaxUnits)
	}
}

func TestSizeClampsStopRange(t *testing.T) {
	p := NewPositionSizer(DefaultConfig())
	spec := eurusd(t)

	// Tiny ATR floors at the minimum stop.
	plan := p.Size(longSignal("2"), d("0.01"), d("10000"), d("1.1000"), spec)
	if !plan.Valid {
		t.Fatalf("plan rejected: %s", plan.RejectReason)
	}
	if !plan.StopPips.Equal(d("12")) {
		t.Errorf("stop pips with ATR 2 = %s, want floor 12", plan.StopPips)
	}

	// Huge ATR caps at the maximum stop.
	plan = p.Size(longSignal("100"), d("0.01"), d("10000"), d("1.1000"), spec)
	if !plan.StopPips.Equal(d("45")) {
		t.Errorf("stop pips with ATR 100 = %s, want cap 45", plan.StopPips)
	}
}

func TestSizeRejectsBelowMinimumIncrement(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPositionSizer(cfg)

	spec := eurusd(t)
	spec.MinUnits = 1000

	// 10 * 1% = 0.10 at risk over a 12 pip stop is 83 units, which
	// floors below the 1000-unit increment: reject, never round up.
	plan := p.Size(longSignal("8"), d("0.01"), d("10"), d("1.1000"), spec)
	if plan.Valid {
		t.Fatalf("plan for dust-sized position must be rejected, got %d units", plan.Units)
	}
	if plan.RejectReason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestSizePlacesProtectiveOrders(t *testing.T) {
	p := NewPositionSizer(DefaultConfig())
	spec := eurusd(t)

	plan := p.Size(longSignal("10"), d("0.01"), d("10000"), d("1.1000"), spec)
	if !plan.Valid {
		t.Fatalf("plan rejected: %s", plan.RejectReason)
	}

	// Long: stop 15 pips below entry, target 18 pips (1.2R) above.
	if !plan.StopLoss.Equal(d("1.0985")) {
		t.Errorf("stop loss = %s, want 1.0985", plan.StopLoss)
	}
	if !plan.TakeProfit.Equal(d("1.1018")) {
		t.Errorf("take profit = %s, want 1.1018", plan.TakeProfit)
	}

	short := longSignal("10")
	short.Direction = types.SideShort
	plan = p.Size(short, d("0.01"), d("10000"), d("1.1000"), spec)
	if !plan.StopLoss.Equal(d("1.1015")) {
		t.Errorf("short stop loss = %s, want 1.1015", plan.StopLoss)
	}
	if !plan.TakeProfit.Equal(d("1.0982")) {
		t.Errorf("short take profit = %s, want 1.0982", plan.TakeProfit)
	}
}

func TestRewardRiskFloor(t *testing.T) {
	p := NewPositionSizer(DefaultConfig())
	spec := eurusd(t)

	plan := p.Size(longSignal("10"), d("0.01"), d("10000"), d("1.1000"), spec)
	if !plan.Valid {
		t.Fatalf("plan rejected: %s", plan.RejectReason)
	}

	reward := plan.TakeProfit.Sub(d("1.1000"))
	risked := d("1.1000").Sub(plan.StopLoss)
	ratio := reward.Div(risked)
	if ratio.LessThan(d("1.2")) {
		t.Errorf("reward/risk = %s, want >= 1.2", ratio)
	}
}
