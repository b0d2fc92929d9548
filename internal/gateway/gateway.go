// Package gateway provides brokerage connectivity for live trading.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// OrderRequest describes a market order with protective orders attached
// on fill.
type OrderRequest struct {
	Instrument string
	Side       types.Side
	Units      int64
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	ClientID   string // idempotency key
}

// OrderFill is the confirmed result of a submitted order.
type OrderFill struct {
	TradeID  string
	Price    decimal.Decimal
	Units    int64
	FilledAt time.Time
}

// CloseResult is the confirmed result of closing a trade.
type CloseResult struct {
	Price      decimal.Decimal
	RealizedPL decimal.Decimal
	ClosedAt   time.Time
}

// RemoteTrade is a trade as the broker reports it, used for boot
// reconciliation against local state.
type RemoteTrade struct {
	ID           string
	Instrument   string
	Units        int64
	Price        decimal.Decimal
	OpenedAt     time.Time
	UnrealizedPL decimal.Decimal
}

// Gateway defines the brokerage transport the engine depends on.
// Implementations must map failures onto the types error taxonomy so the
// engine can distinguish transient faults from rejections.
type Gateway interface {
	// AccountSnapshot fetches the current account state.
	AccountSnapshot(ctx context.Context) (*types.AccountSnapshot, error)

	// Candles fetches up to count recent bars for an instrument.
	Candles(ctx context.Context, instrument string, count int) ([]types.Candle, error)

	// Price fetches the current mid price for an instrument.
	Price(ctx context.Context, instrument string) (decimal.Decimal, error)

	// CreateOrder submits a market order and waits for the fill.
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderFill, error)

	// CloseTrade closes an open trade by its broker-assigned id.
	CloseTrade(ctx context.Context, tradeID string) (*CloseResult, error)

	// OpenTrades lists the trades the broker currently reports open.
	OpenTrades(ctx context.Context) ([]RemoteTrade, error)
}
