// Package executor submits entry orders through the brokerage gateway.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/gateway"
	"github.com/dommurphy155/Very-last-try/internal/sizer"
	"github.com/dommurphy155/Very-last-try/internal/types"
)

// Config holds execution settings.
type Config struct {
	// Cooldown is the minimum gap between any two order submissions,
	// guarding against order-submission storms.
	Cooldown time.Duration
	// InstrumentCooldown is the minimum gap between entries on the same
	// instrument.
	InstrumentCooldown time.Duration
	// MarginRate approximates the margin requirement as a fraction of
	// notional when validating against the account snapshot.
	MarginRate decimal.Decimal
}

// DefaultConfig returns the standard execution settings.
func DefaultConfig() Config {
	return Config{
		Cooldown:           6 * time.Second,
		InstrumentCooldown: 15 * time.Minute,
		MarginRate:         decimal.RequireFromString("0.0333"), // ~30:1
	}
}

// Executor validates and submits entry orders. It never mutates bot
// state; on success it hands the constructed OpenTrade to the caller.
type Executor struct {
	cfg     Config
	gateway gateway.Gateway
	logger  *slog.Logger

	mu               sync.Mutex
	lastExecution    time.Time
	lastByInstrument map[string]time.Time
	now              func() time.Time
}

// NewExecutor creates a trade executor.
func NewExecutor(cfg Config, gw gateway.Gateway, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:              cfg,
		gateway:          gw,
		logger:           logger,
		lastByInstrument: make(map[string]time.Time),
		now:              time.Now,
	}
}

// MarginRate returns the configured margin requirement as a fraction of
// notional, for callers estimating margin needs before sizing.
func (e *Executor) MarginRate() decimal.Decimal {
	return e.cfg.MarginRate
}

// Execute submits the plan as a market order. A request arriving before a
// cooldown expires returns ErrCooldownActive so the caller can record the
// skip and retry next cycle; it is never dropped silently.
func (e *Executor) Execute(ctx context.Context, signal types.InstrumentSignal, plan sizer.Plan) (*types.OpenTrade, error) {
	if !plan.Valid {
		return nil, fmt.Errorf("%w: %s", types.ErrPlanRejected, plan.RejectReason)
	}

	if err := e.checkCooldowns(signal.Instrument); err != nil {
		return nil, err
	}

	// Re-check margin against a fresh snapshot; time has passed since
	// the cycle scored this instrument.
	snap, err := e.gateway.AccountSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("pre-trade account refresh: %w", err)
	}

	price, err := e.gateway.Price(ctx, signal.Instrument)
	if err != nil {
		return nil, fmt.Errorf("pre-trade price: %w", err)
	}

	required := price.Mul(decimal.NewFromInt(plan.Units)).Mul(e.cfg.MarginRate)
	if snap.MarginAvailable.LessThan(required) {
		return nil, fmt.Errorf("%w: need %s, available %s",
			types.ErrInsufficientMargin, required.StringFixed(2), snap.MarginAvailable.StringFixed(2))
	}

	req := gateway.OrderRequest{
		Instrument: signal.Instrument,
		Side:       signal.Direction,
		Units:      plan.Units,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		ClientID:   clientOrderID(),
	}

	fill, err := e.gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	e.markExecuted(signal.Instrument)

	trade := &types.OpenTrade{
		ID:           fill.TradeID,
		Instrument:   signal.Instrument,
		Side:         signal.Direction,
		Units:        fill.Units,
		EntryPrice:   fill.Price,
		StopLoss:     plan.StopLoss,
		TakeProfit:   plan.TakeProfit,
		TrailingMark: fill.Price,
		OpenedAt:     fill.FilledAt,
		State:        types.TradeStateOpen,
	}

	e.logger.Info("trade opened",
		"trade_id", trade.ID,
		"instrument", trade.Instrument,
		"side", trade.Side,
		"units", trade.Units,
		"entry", trade.EntryPrice,
		"stop", trade.StopLoss,
		"target", trade.TakeProfit,
		"risk", plan.RiskAmount.StringFixed(2),
	)

	return trade, nil
}

func (e *Executor) checkCooldowns(instrument string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !e.lastExecution.IsZero() && now.Sub(e.lastExecution) < e.cfg.Cooldown {
		return fmt.Errorf("%w: global cooldown until %s",
			types.ErrCooldownActive, e.lastExecution.Add(e.cfg.Cooldown).Format(time.RFC3339))
	}
	if last, ok := e.lastByInstrument[instrument]; ok && now.Sub(last) < e.cfg.InstrumentCooldown {
		return fmt.Errorf("%w: %s cooldown until %s",
			types.ErrCooldownActive, instrument, last.Add(e.cfg.InstrumentCooldown).Format(time.RFC3339))
	}
	return nil
}

func (e *Executor) markExecuted(instrument string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	e.lastExecution = now
	e.lastByInstrument[instrument] = now
}

// clientOrderID creates a unique client order ID for idempotency.
func clientOrderID() string {
	return fmt.Sprintf("%s-%s",
		time.Now().Format("20060102-150405"),
		uuid.New().String()[:8],
	)
}
