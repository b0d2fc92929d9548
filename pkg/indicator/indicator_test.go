package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSMA(t *testing.T) {
	sma := NewSMA(3)

	if sma.Ready() {
		t.Fatal("SMA should not be ready with no input")
	}

	sma.Update(d("1"))
	sma.Update(d("2"))
	if sma.Ready() {
		t.Fatal("SMA should not be ready before the window fills")
	}

	got := sma.Update(d("3"))
	if !sma.Ready() {
		t.Fatal("SMA should be ready after the window fills")
	}
	if !got.Equal(d("2")) {
		t.Errorf("SMA of 1,2,3 = %s, want 2", got)
	}

	// Window slides: 2,3,4.
	got = sma.Update(d("4"))
	if !got.Equal(d("3")) {
		t.Errorf("SMA of 2,3,4 = %s, want 3", got)
	}
}

func TestEMASeedsWithFirstValue(t *testing.T) {
	ema := NewEMA(10)
	got := ema.Update(d("5"))
	if !got.Equal(d("5")) {
		t.Errorf("first EMA value = %s, want 5", got)
	}

	// Subsequent values pull the EMA toward the input.
	got = ema.Update(d("10"))
	if !got.GreaterThan(d("5")) || !got.LessThan(d("10")) {
		t.Errorf("EMA after 5,10 = %s, want between 5 and 10", got)
	}
}

func TestRSIExtremes(t *testing.T) {
	rsi := NewRSI(5)

	// Not enough data yet: neutral.
	got := rsi.Update(d("100"))
	if !got.Equal(d("50")) {
		t.Errorf("RSI before ready = %s, want 50", got)
	}

	// Monotonic gains push RSI to the top of its range.
	price := d("100")
	for i := 0; i < 10; i++ {
		price = price.Add(d("1"))
		got = rsi.Update(price)
	}
	if got.LessThan(d("99")) {
		t.Errorf("RSI after steady gains = %s, want near 100", got)
	}

	// Monotonic losses push it to the bottom.
	rsi = NewRSI(5)
	price = d("100")
	rsi.Update(price)
	for i := 0; i < 10; i++ {
		price = price.Sub(d("1"))
		got = rsi.Update(price)
	}
	if got.GreaterThan(d("1")) {
		t.Errorf("RSI after steady losses = %s, want near 0", got)
	}
}

func TestMACDHistogramSign(t *testing.T) {
	macd := NewMACD(3, 6, 3)

	price := d("100")
	for i := 0; i < 20; i++ {
		price = price.Add(d("1"))
		macd.Update(price)
	}
	if !macd.Ready() {
		t.Fatal("MACD should be ready after 20 updates")
	}

	// In a steady uptrend the fast EMA leads the slow one.
	line, _ := macd.Update(price.Add(d("1")))
	if !line.GreaterThan(decimal.Zero) {
		t.Errorf("MACD line in uptrend = %s, want > 0", line)
	}
}

func TestATR(t *testing.T) {
	atr := NewATR(3)

	// Constant 2-point range candles.
	for i := 0; i < 5; i++ {
		atr.Update(d("102"), d("100"), d("101"))
	}
	if !atr.Ready() {
		t.Fatal("ATR should be ready")
	}
	got := atr.Current()
	if !got.Equal(d("2")) {
		t.Errorf("ATR of constant 2-range candles = %s, want 2", got)
	}
}

func TestStdDev(t *testing.T) {
	sd := NewStdDev(4)
	for _, v := range []string{"2", "4", "4", "6"} {
		sd.Update(d(v))
	}
	if !sd.Ready() {
		t.Fatal("StdDev should be ready")
	}
	if !sd.Mean().Equal(d("4")) {
		t.Errorf("mean = %s, want 4", sd.Mean())
	}

	// Sample variance of 2,4,4,6 is 8/3.
	got := sd.Current()
	if got.LessThan(d("1.6")) || got.GreaterThan(d("1.7")) {
		t.Errorf("stddev = %s, want ~1.633", got)
	}
}
