package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPipsBetween(t *testing.T) {
	eur, _ := GetInstrumentSpec("EUR_USD")
	jpy, _ := GetInstrumentSpec("USD_JPY")

	if got := eur.PipsBetween(d("1.1000"), d("1.1025")); !got.Equal(d("25")) {
		t.Errorf("EUR_USD pips = %s, want 25", got)
	}
	// JPY-quoted pairs use a 0.01 pip.
	if got := jpy.PipsBetween(d("150.00"), d("150.25")); !got.Equal(d("25")) {
		t.Errorf("USD_JPY pips = %s, want 25", got)
	}
	if got := eur.PipsBetween(d("1.1025"), d("1.1000")); !got.Equal(d("-25")) {
		t.Errorf("reverse move = %s, want -25", got)
	}
}

func TestUnrealizedPipsBySide(t *testing.T) {
	eur, _ := GetInstrumentSpec("EUR_USD")

	// Rising price: profit for longs, loss for shorts.
	if got := UnrealizedPips(eur, SideLong, d("1.1000"), d("1.1010")); !got.Equal(d("10")) {
		t.Errorf("long pips = %s, want 10", got)
	}
	if got := UnrealizedPips(eur, SideShort, d("1.1000"), d("1.1010")); !got.Equal(d("-10")) {
		t.Errorf("short pips = %s, want -10", got)
	}
}

func TestPriceAtPips(t *testing.T) {
	eur, _ := GetInstrumentSpec("EUR_USD")

	if got := eur.PriceAtPips(d("1.1000"), d("15"), SideLong); !got.Equal(d("1.1015")) {
		t.Errorf("long offset = %s, want 1.1015", got)
	}
	if got := eur.PriceAtPips(d("1.1000"), d("15"), SideShort); !got.Equal(d("1.0985")) {
		t.Errorf("short offset = %s, want 1.0985", got)
	}
}

func TestSideAndStateStrings(t *testing.T) {
	if SideLong.Opposite() != SideShort || SideShort.Opposite() != SideLong {
		t.Error("sides must be opposites")
	}
	if !TradeStateClosed.IsFinal() || TradeStateOpen.IsFinal() {
		t.Error("only closed trades are final")
	}
}

func TestOpenTradeJSONRoundTrip(t *testing.T) {
	trade := OpenTrade{
		ID:           "t-1",
		Instrument:   "EUR_USD",
		Side:         SideShort,
		Units:        2500,
		EntryPrice:   d("1.1000"),
		StopLoss:     d("1.1030"),
		TrailingMark: d("1.0990"),
		State:        TradeStateTrailingArmed,
	}

	data, err := json.Marshal(trade)
	if err != nil {
		t.Fatal(err)
	}

	var back OpenTrade
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Side != SideShort || back.State != TradeStateTrailingArmed {
		t.Errorf("round trip lost enums: %+v", back)
	}
	if !back.TrailingMark.Equal(d("1.0990")) {
		t.Errorf("trailing mark = %s", back.TrailingMark)
	}
}

func TestClosedTradeWon(t *testing.T) {
	if (ClosedTrade{RealizedPips: d("0.1")}).Won() != true {
		t.Error("positive pips is a win")
	}
	if (ClosedTrade{RealizedPips: d("0")}).Won() {
		t.Error("flat is not a win")
	}
	if (ClosedTrade{RealizedPips: d("-5")}).Won() {
		t.Error("negative pips is not a win")
	}
}
