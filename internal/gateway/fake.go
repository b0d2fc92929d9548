package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// FakeGateway is an in-memory Gateway for tests. Failures can be
// programmed per operation to simulate timeouts and rejections.
type FakeGateway struct {
	mu sync.Mutex

	Snapshot   types.AccountSnapshot
	CandleData map[string][]types.Candle
	Prices     map[string]decimal.Decimal
	Remote     []RemoteTrade

	// Programmable failures, consumed per call when set.
	SnapshotErr error
	CandlesErr  map[string]error
	OrderErr    error
	CloseErr    error
	ListErr     error

	nextTradeID int
	Orders      []OrderRequest
	Closed      []string
}

// NewFakeGateway creates a fake gateway with an empty book.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		CandleData: make(map[string][]types.Candle),
		Prices:     make(map[string]decimal.Decimal),
		CandlesErr: make(map[string]error),
		Snapshot: types.AccountSnapshot{
			Currency:        "GBP",
			Balance:         decimal.NewFromInt(10000),
			Equity:          decimal.NewFromInt(10000),
			MarginAvailable: decimal.NewFromInt(10000),
		},
	}
}

// AccountSnapshot returns the programmed snapshot.
func (f *FakeGateway) AccountSnapshot(ctx context.Context) (*types.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SnapshotErr != nil {
		return nil, f.SnapshotErr
	}
	snap := f.Snapshot
	snap.FetchedAt = time.Now().UTC()
	return &snap, nil
}

// Candles returns the programmed history for an instrument.
func (f *FakeGateway) Candles(ctx context.Context, instrument string, count int) ([]types.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.CandlesErr[instrument]; err != nil {
		return nil, err
	}
	candles := f.CandleData[instrument]
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	out := make([]types.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// Price returns the programmed price for an instrument.
func (f *FakeGateway) Price(ctx context.Context, instrument string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.Prices[instrument]
	if !ok {
		return decimal.Zero, types.NewTransientGatewayError("pricing "+instrument, fmt.Errorf("no price programmed"))
	}
	return price, nil
}

// CreateOrder records the order and fills it at the programmed price.
func (f *FakeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*OrderFill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OrderErr != nil {
		return nil, f.OrderErr
	}

	f.Orders = append(f.Orders, req)
	f.nextTradeID++
	id := fmt.Sprintf("fake-%d", f.nextTradeID)

	price, ok := f.Prices[req.Instrument]
	if !ok {
		price = decimal.NewFromInt(1)
	}

	units := req.Units
	if req.Side == types.SideShort {
		units = -units
	}
	f.Remote = append(f.Remote, RemoteTrade{
		ID:         id,
		Instrument: req.Instrument,
		Units:      units,
		Price:      price,
		OpenedAt:   time.Now().UTC(),
	})

	return &OrderFill{TradeID: id, Price: price, Units: req.Units, FilledAt: time.Now().UTC()}, nil
}

// CloseTrade removes the trade from the remote book.
func (f *FakeGateway) CloseTrade(ctx context.Context, tradeID string) (*CloseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseErr != nil {
		return nil, f.CloseErr
	}

	for i, rt := range f.Remote {
		if rt.ID == tradeID {
			f.Remote = append(f.Remote[:i], f.Remote[i+1:]...)
			f.Closed = append(f.Closed, tradeID)
			price := f.Prices[rt.Instrument]
			return &CloseResult{Price: price, ClosedAt: time.Now().UTC()}, nil
		}
	}
	return nil, types.NewTransientGatewayError("close trade "+tradeID, fmt.Errorf("unknown trade"))
}

// OpenTrades lists the remote book.
func (f *FakeGateway) OpenTrades(ctx context.Context) ([]RemoteTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]RemoteTrade, len(f.Remote))
	copy(out, f.Remote)
	return out, nil
}

// SetCandles programs a synthetic linear candle series for an instrument.
func (f *FakeGateway) SetCandles(instrument string, closes []decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	candles := make([]types.Candle, len(closes))
	base := time.Now().UTC().Add(-time.Duration(len(closes)) * 5 * time.Minute)
	spread := decimal.RequireFromString("0.0002")
	for i, c := range closes {
		candles[i] = types.Candle{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c,
			High:      c.Add(spread),
			Low:       c.Sub(spread),
			Close:     c,
			Complete:  true,
		}
	}
	f.CandleData[instrument] = candles
	if len(closes) > 0 {
		f.Prices[instrument] = closes[len(closes)-1]
	}
}
