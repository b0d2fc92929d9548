package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestClient(handler http.Handler) (*OandaClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewOandaClient(OandaConfig{
		BaseURL:            srv.URL,
		APIKey:             "test-key",
		AccountID:          "001-001-1234567-001",
		RateLimitPerSecond: 1000,
	}, nil)
	return client, srv
}

func TestAccountSnapshot(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"account":{"id":"001-001-1234567-001","currency":"GBP",
			"balance":"10000.00","NAV":"10125.50","marginAvailable":"9700.00",
			"marginUsed":"425.50","unrealizedPL":"125.50"}}`))
	}))
	defer srv.Close()

	snap, err := client.AccountSnapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.Equity.Equal(d("10125.50")) {
		t.Errorf("equity = %s, want 10125.50", snap.Equity)
	}
	if snap.Currency != "GBP" {
		t.Errorf("currency = %s", snap.Currency)
	}
}

func TestCandlesParsing(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("price"); got != "M" {
			t.Errorf("price param = %q, want M", got)
		}
		w.Write([]byte(`{"candles":[
			{"time":"2026-01-05T09:00:00.000000000Z","complete":true,
			 "mid":{"o":"1.1000","h":"1.1010","l":"1.0995","c":"1.1005"}},
			{"time":"2026-01-05T09:05:00.000000000Z","complete":false,
			 "mid":{"o":"1.1005","h":"1.1008","l":"1.1002","c":"1.1006"}}
		]}`))
	}))
	defer srv.Close()

	candles, err := client.Candles(context.Background(), "EUR_USD", 2)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("candles = %d, want 2", len(candles))
	}
	if !candles[0].Close.Equal(d("1.1005")) || !candles[0].Complete {
		t.Errorf("first candle = %+v", candles[0])
	}
	if candles[1].Complete {
		t.Error("second candle must be marked incomplete")
	}
}

func TestPriceIsMidpoint(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prices":[{"bids":[{"price":"1.1000"}],"asks":[{"price":"1.1002"}]}]}`))
	}))
	defer srv.Close()

	price, err := client.Price(context.Background(), "EUR_USD")
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.Equal(d("1.1001")) {
		t.Errorf("mid = %s, want 1.1001", price)
	}
}

func TestCreateOrderFill(t *testing.T) {
	var captured map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"orderFillTransaction":{"time":"2026-01-05T09:00:00Z",
			"price":"1.10015","units":"-5000",
			"tradeOpened":{"tradeID":"6789","units":"-5000"}}}`))
	}))
	defer srv.Close()

	fill, err := client.CreateOrder(context.Background(), OrderRequest{
		Instrument: "EUR_USD",
		Side:       types.SideShort,
		Units:      5000,
		StopLoss:   d("1.1030"),
		TakeProfit: d("1.0964"),
		ClientID:   "cid-1",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if fill.TradeID != "6789" || fill.Units != 5000 {
		t.Errorf("fill = %+v", fill)
	}

	order := captured["order"].(map[string]any)
	if order["units"] != "-5000" {
		t.Errorf("short order units = %v, want -5000", order["units"])
	}
	if order["type"] != "MARKET" || order["timeInForce"] != "FOK" {
		t.Errorf("order spec = %v", order)
	}
	stopLoss := order["stopLossOnFill"].(map[string]any)
	if stopLoss["price"] != "1.10300" {
		t.Errorf("stop price = %v, want 1.10300", stopLoss["price"])
	}
}

func TestCreateOrderRejected(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderRejectTransaction":{"rejectReason":"INSUFFICIENT_MARGIN"}}`))
	}))
	defer srv.Close()

	_, err := client.CreateOrder(context.Background(), OrderRequest{
		Instrument: "EUR_USD", Side: types.SideLong, Units: 5000,
	})

	var rejected *types.RejectedOrderError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want RejectedOrderError", err)
	}
	if rejected.Reason != "INSUFFICIENT_MARGIN" {
		t.Errorf("reason = %s", rejected.Reason)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusTooManyRequests, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := client.AccountSnapshot(context.Background())
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if got := types.IsTransientGatewayError(err); got != tc.transient {
			t.Errorf("status %d: transient = %v, want %v", tc.status, got, tc.transient)
		}
		srv.Close()
	}
}

func TestParseOandaTimeSubNanoseconds(t *testing.T) {
	// OANDA emits more fractional digits than RFC3339Nano accepts.
	ts, err := parseOandaTime("2026-01-05T09:00:00.1234567890123Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts.IsZero() {
		t.Error("parsed time is zero")
	}

	if _, err := parseOandaTime("yesterday"); err == nil {
		t.Error("garbage timestamps must error")
	}
}
