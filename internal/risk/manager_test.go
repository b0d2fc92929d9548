package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseInput() EvalInput {
	return EvalInput{
		Equity:            d("10000"),
		PeakEquity:        d("10000"),
		StartOfDayEquity:  d("10000"),
		DailyRealizedPL:   decimal.Zero,
		ConsecutiveLosses: 0,
		MarginAvailable:   d("10000"),
		MinPositionMargin: d("1"),
		Confidence:        d("0.75"),
	}
}

func TestEvaluateAllowsHealthyAccount(t *testing.T) {
	m := NewManager(DefaultConfig())

	dec := m.Evaluate(baseInput())
	if !dec.Allowed {
		t.Fatalf("healthy account blocked: %s", dec.Reason)
	}
	if dec.RiskFraction.IsZero() {
		t.Fatal("allowed decision must carry a risk fraction")
	}
}

func TestEvaluateHaltsOnDrawdown(t *testing.T) {
	m := NewManager(DefaultConfig())

	// Exactly 10% below peak: halted.
	in := baseInput()
	in.Equity = d("9000")
	if dec := m.Evaluate(in); dec.Allowed {
		t.Error("10% drawdown must halt trading")
	}

	// Just under 10%: allowed.
	in.Equity = d("9001")
	if dec := m.Evaluate(in); !dec.Allowed {
		t.Errorf("9.99%% drawdown should not halt: %s", dec.Reason)
	}
}

func TestEvaluateHaltsOnDailyLoss(t *testing.T) {
	m := NewManager(DefaultConfig())

	// 210 lost on a 10000 day start is 2.1%: halted.
	in := baseInput()
	in.DailyRealizedPL = d("-210")
	if dec := m.Evaluate(in); dec.Allowed {
		t.Error("2.1% daily loss must halt trading")
	}

	// 190 lost is 1.9%: allowed.
	in.DailyRealizedPL = d("-190")
	if dec := m.Evaluate(in); !dec.Allowed {
		t.Errorf("1.9%% daily loss should not halt: %s", dec.Reason)
	}

	// A winning day never trips the loss gate.
	in.DailyRealizedPL = d("500")
	if dec := m.Evaluate(in); !dec.Allowed {
		t.Errorf("profit should not halt: %s", dec.Reason)
	}
}

func TestEvaluateHaltsOnLossStreak(t *testing.T) {
	m := NewManager(DefaultConfig())

	in := baseInput()
	in.ConsecutiveLosses = 5
	if dec := m.Evaluate(in); dec.Allowed {
		t.Error("5 consecutive losses must halt trading")
	}

	in.ConsecutiveLosses = 4
	if dec := m.Evaluate(in); !dec.Allowed {
		t.Errorf("4 consecutive losses should not halt: %s", dec.Reason)
	}
}

func TestEvaluateHaltsOnMargin(t *testing.T) {
	m := NewManager(DefaultConfig())

	in := baseInput()
	in.MarginAvailable = d("0.5")
	in.MinPositionMargin = d("1")
	if dec := m.Evaluate(in); dec.Allowed {
		t.Error("insufficient margin must halt trading")
	}
}

func TestRiskFractionScalesWithConfidence(t *testing.T) {
	m := NewManager(DefaultConfig())

	cases := []struct {
		confidence string
		want       string
	}{
		{"0.5", "0.01"},
		{"0.75", "0.02"},
		{"1.0", "0.03"},
		{"0.3", "0.01"}, // clipped low
		{"1.2", "0.03"}, // clipped high
	}

	for _, tc := range cases {
		in := baseInput()
		in.Confidence = d(tc.confidence)
		dec := m.Evaluate(in)
		if !dec.Allowed {
			t.Fatalf("confidence %s blocked: %s", tc.confidence, dec.Reason)
		}
		if !dec.RiskFraction.Equal(d(tc.want)) {
			t.Errorf("confidence %s: fraction = %s, want %s",
				tc.confidence, dec.RiskFraction, tc.want)
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	m := NewManager(DefaultConfig())
	in := baseInput()

	first := m.Evaluate(in)
	for i := 0; i < 5; i++ {
		again := m.Evaluate(in)
		if again.Allowed != first.Allowed || !again.RiskFraction.Equal(first.RiskFraction) {
			t.Fatal("identical inputs must produce identical decisions")
		}
	}
}

func TestHighWaterMarkTracker(t *testing.T) {
	hw := NewHighWaterMarkTracker(d("10000"))

	if hw.Update(d("9500")) {
		t.Error("lower equity must not raise the peak")
	}
	if !hw.Peak().Equal(d("10000")) {
		t.Errorf("peak = %s, want 10000", hw.Peak())
	}

	if !hw.Update(d("10500")) {
		t.Error("higher equity must raise the peak")
	}

	hw.Update(d("9450"))
	// 1050 off a 10500 peak is exactly 10%.
	if !hw.Drawdown().Equal(d("0.1")) {
		t.Errorf("drawdown = %s, want 0.1", hw.Drawdown())
	}
}

func TestRestoreKeepsPersistedPeak(t *testing.T) {
	hw := Restore(d("9000"), d("12000"))
	if !hw.Peak().Equal(d("12000")) {
		t.Errorf("restored peak = %s, want 12000", hw.Peak())
	}
	if !hw.Drawdown().Equal(d("0.25")) {
		t.Errorf("restored drawdown = %s, want 0.25", hw.Drawdown())
	}
}
