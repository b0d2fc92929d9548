package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// OandaConfig holds the OANDA v3 REST client settings.
type OandaConfig struct {
	BaseURL            string
	APIKey             string
	AccountID          string
	Granularity        string
	Timeout            time.Duration
	RateLimitPerSecond int
}

// OandaClient implements Gateway against the OANDA v3 REST API.
type OandaClient struct {
	cfg     OandaConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOandaClient creates a new OANDA gateway client.
func NewOandaClient(cfg OandaConfig, logger *slog.Logger) *OandaClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 10
	}
	if cfg.Granularity == "" {
		cfg.Granularity = "M5"
	}

	return &OandaClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitPerSecond),
		logger:  logger,
	}
}

// do performs a rate-limited authenticated request and decodes the JSON
// response into out. Failures are mapped onto the gateway error taxonomy.
func (c *OandaClient) do(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return types.NewTransientGatewayError(op, err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewTransientGatewayError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewTransientGatewayError(op, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return types.NewTransientGatewayError(op, fmt.Errorf("decode response: %w", err))
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.NewPermanentGatewayError(op, fmt.Errorf("authentication rejected (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return types.NewTransientGatewayError(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody)))
	default:
		return types.NewPermanentGatewayError(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody)))
	}
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

type oandaAccountResponse struct {
	Account struct {
		ID              string `json:"id"`
		Currency        string `json:"currency"`
		Balance         string `json:"balance"`
		NAV             string `json:"NAV"`
		MarginAvailable string `json:"marginAvailable"`
		MarginUsed      string `json:"marginUsed"`
		UnrealizedPL    string `json:"unrealizedPL"`
	} `json:"account"`
}

// AccountSnapshot fetches the current account state.
func (c *OandaClient) AccountSnapshot(ctx context.Context) (*types.AccountSnapshot, error) {
	var resp oandaAccountResponse
	path := fmt.Sprintf("/accounts/%s/summary", c.cfg.AccountID)
	if err := c.do(ctx, "account summary", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	snap := &types.AccountSnapshot{
		AccountID: resp.Account.ID,
		Currency:  resp.Account.Currency,
		FetchedAt: time.Now().UTC(),
	}

	var err error
	if snap.Balance, err = decimal.NewFromString(resp.Account.Balance); err != nil {
		return nil, types.NewTransientGatewayError("account summary", fmt.Errorf("parse balance: %w", err))
	}
	if snap.Equity, err = decimal.NewFromString(resp.Account.NAV); err != nil {
		return nil, types.NewTransientGatewayError("account summary", fmt.Errorf("parse NAV: %w", err))
	}
	snap.MarginAvailable, _ = decimal.NewFromString(resp.Account.MarginAvailable)
	snap.MarginUsed, _ = decimal.NewFromString(resp.Account.MarginUsed)
	snap.UnrealizedPL, _ = decimal.NewFromString(resp.Account.UnrealizedPL)

	return snap, nil
}

type oandaCandlesResponse struct {
	Candles []struct {
		Time     string `json:"time"`
		Complete bool   `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

// Candles fetches up to count recent mid-price bars for an instrument.
func (c *OandaClient) Candles(ctx context.Context, instrument string, count int) ([]types.Candle, error) {
	q := url.Values{}
	q.Set("granularity", c.cfg.Granularity)
	q.Set("count", strconv.Itoa(count))
	q.Set("price", "M")

	var resp oandaCandlesResponse
	path := fmt.Sprintf("/instruments/%s/candles?%s", instrument, q.Encode())
	if err := c.do(ctx, "candles "+instrument, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	candles := make([]types.Candle, 0, len(resp.Candles))
	for _, rc := range resp.Candles {
		ts, err := parseOandaTime(rc.Time)
		if err != nil {
			c.logger.Warn("skipping candle with bad timestamp", "instrument", instrument, "time", rc.Time)
			continue
		}
		candle := types.Candle{Timestamp: ts, Complete: rc.Complete}
		if candle.Open, err = decimal.NewFromString(rc.Mid.O); err != nil {
			continue
		}
		if candle.High, err = decimal.NewFromString(rc.Mid.H); err != nil {
			continue
		}
		if candle.Low, err = decimal.NewFromString(rc.Mid.L); err != nil {
			continue
		}
		if candle.Close, err = decimal.NewFromString(rc.Mid.C); err != nil {
			continue
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

type oandaPricingResponse struct {
	Prices []struct {
		Bids []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

// Price fetches the current bid/ask mid price for an instrument.
func (c *OandaClient) Price(ctx context.Context, instrument string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("instruments", instrument)

	var resp oandaPricingResponse
	path := fmt.Sprintf("/accounts/%s/pricing?%s", c.cfg.AccountID, q.Encode())
	if err := c.do(ctx, "pricing "+instrument, http.MethodGet, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}

	if len(resp.Prices) == 0 || len(resp.Prices[0].Bids) == 0 || len(resp.Prices[0].Asks) == 0 {
		return decimal.Zero, types.NewTransientGatewayError("pricing "+instrument, fmt.Errorf("%w: empty pricing response", types.ErrInvalidPrice))
	}

	bid, err := decimal.NewFromString(resp.Prices[0].Bids[0].Price)
	if err != nil {
		return decimal.Zero, types.NewTransientGatewayError("pricing "+instrument, err)
	}
	ask, err := decimal.NewFromString(resp.Prices[0].Asks[0].Price)
	if err != nil {
		return decimal.Zero, types.NewTransientGatewayError("pricing "+instrument, err)
	}

	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}

type oandaOrderRequest struct {
	Order struct {
		Type         string `json:"type"`
		Instrument   string `json:"instrument"`
		Units        string `json:"units"`
		TimeInForce  string `json:"timeInForce"`
		PositionFill string `json:"positionFill"`
		ClientExt    *struct {
			ID string `json:"id"`
		} `json:"clientExtensions,omitempty"`
		StopLossOnFill *struct {
			Price string `json:"price"`
		} `json:"stopLossOnFill,omitempty"`
		TakeProfitOnFill *struct {
			Price string `json:"price"`
		} `json:"takeProfitOnFill,omitempty"`
	} `json:"order"`
}

type oandaOrderResponse struct {
	OrderFillTransaction *struct {
		Time        string `json:"time"`
		Price       string `json:"price"`
		Units       string `json:"units"`
		TradeOpened *struct {
			TradeID string `json:"tradeID"`
			Units   string `json:"units"`
		} `json:"tradeOpened"`
	} `json:"orderFillTransaction"`
	OrderCancelTransaction *struct {
		Reason string `json:"reason"`
	} `json:"orderCancelTransaction"`
	OrderRejectTransaction *struct {
		RejectReason string `json:"rejectReason"`
	} `json:"orderRejectTransaction"`
}

// CreateOrder submits a fill-or-kill market order with stop loss and take
// profit attached on fill.
func (c *OandaClient) CreateOrder(ctx context.Context, req OrderRequest) (*OrderFill, error) {
	spec, ok := types.GetInstrumentSpec(req.Instrument)
	if !ok {
		return nil, types.ErrInvalidSymbol
	}

	units := req.Units
	if req.Side == types.SideShort {
		units = -units
	}

	var body oandaOrderRequest
	body.Order.Type = "MARKET"
	body.Order.Instrument = req.Instrument
	body.Order.Units = strconv.FormatInt(units, 10)
	body.Order.TimeInForce = "FOK"
	body.Order.PositionFill = "DEFAULT"
	if req.ClientID != "" {
		body.Order.ClientExt = &struct {
			ID string `json:"id"`
		}{ID: req.ClientID}
	}
	if !req.StopLoss.IsZero() {
		body.Order.StopLossOnFill = &struct {
			Price string `json:"price"`
		}{Price: req.StopLoss.StringFixed(spec.Precision)}
	}
	if !req.TakeProfit.IsZero() {
		body.Order.TakeProfitOnFill = &struct {
			Price string `json:"price"`
		}{Price: req.TakeProfit.StringFixed(spec.Precision)}
	}

	var resp oandaOrderResponse
	path := fmt.Sprintf("/accounts/%s/orders", c.cfg.AccountID)
	if err := c.do(ctx, "create order "+req.Instrument, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}

	if resp.OrderRejectTransaction != nil {
		return nil, &types.RejectedOrderError{Instrument: req.Instrument, Reason: resp.OrderRejectTransaction.RejectReason}
	}
	if resp.OrderFillTransaction == nil || resp.OrderFillTransaction.TradeOpened == nil {
		reason := "order not filled"
		if resp.OrderCancelTransaction != nil {
			reason = resp.OrderCancelTransaction.Reason
		}
		return nil, &types.RejectedOrderError{Instrument: req.Instrument, Reason: reason}
	}

	fill := resp.OrderFillTransaction
	price, err := decimal.NewFromString(fill.Price)
	if err != nil {
		return nil, types.NewTransientGatewayError("create order "+req.Instrument, fmt.Errorf("parse fill price: %w", err))
	}
	filledAt, err := parseOandaTime(fill.Time)
	if err != nil {
		filledAt = time.Now().UTC()
	}
	filledUnits, _ := strconv.ParseInt(fill.TradeOpened.Units, 10, 64)
	if filledUnits < 0 {
		filledUnits = -filledUnits
	}

	return &OrderFill{
		TradeID:  fill.TradeOpened.TradeID,
		Price:    price,
		Units:    filledUnits,
		FilledAt: filledAt,
	}, nil
}

type oandaCloseResponse struct {
	OrderFillTransaction *struct {
		Time         string `json:"time"`
		Price        string `json:"price"`
		PL           string `json:"pl"`
		TradesClosed []struct {
			RealizedPL string `json:"realizedPL"`
		} `json:"tradesClosed"`
	} `json:"orderFillTransaction"`
}

// CloseTrade closes an open trade by its broker-assigned id.
func (c *OandaClient) CloseTrade(ctx context.Context, tradeID string) (*CloseResult, error) {
	var resp oandaCloseResponse
	path := fmt.Sprintf("/accounts/%s/trades/%s/close", c.cfg.AccountID, tradeID)
	if err := c.do(ctx, "close trade "+tradeID, http.MethodPut, path, nil, &resp); err != nil {
		return nil, err
	}

	if resp.OrderFillTransaction == nil {
		return nil, types.NewTransientGatewayError("close trade "+tradeID, fmt.Errorf("close not confirmed"))
	}

	fill := resp.OrderFillTransaction
	price, err := decimal.NewFromString(fill.Price)
	if err != nil {
		return nil, types.NewTransientGatewayError("close trade "+tradeID, fmt.Errorf("parse close price: %w", err))
	}
	pl, _ := decimal.NewFromString(fill.PL)
	closedAt, err := parseOandaTime(fill.Time)
	if err != nil {
		closedAt = time.Now().UTC()
	}

	return &CloseResult{Price: price, RealizedPL: pl, ClosedAt: closedAt}, nil
}

type oandaOpenTradesResponse struct {
	Trades []struct {
		ID           string `json:"id"`
		Instrument   string `json:"instrument"`
		CurrentUnits string `json:"currentUnits"`
		Price        string `json:"price"`
		OpenTime     string `json:"openTime"`
		UnrealizedPL string `json:"unrealizedPL"`
	} `json:"trades"`
}

// OpenTrades lists the trades the broker currently reports open.
func (c *OandaClient) OpenTrades(ctx context.Context) ([]RemoteTrade, error) {
	var resp oandaOpenTradesResponse
	path := fmt.Sprintf("/accounts/%s/openTrades", c.cfg.AccountID)
	if err := c.do(ctx, "open trades", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	trades := make([]RemoteTrade, 0, len(resp.Trades))
	for _, rt := range resp.Trades {
		trade := RemoteTrade{ID: rt.ID, Instrument: rt.Instrument}
		trade.Units, _ = strconv.ParseInt(rt.CurrentUnits, 10, 64)
		trade.Price, _ = decimal.NewFromString(rt.Price)
		trade.UnrealizedPL, _ = decimal.NewFromString(rt.UnrealizedPL)
		if ts, err := parseOandaTime(rt.OpenTime); err == nil {
			trade.OpenedAt = ts
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// parseOandaTime parses OANDA's RFC3339 timestamps, which carry
// nanosecond-plus precision that time.Parse tolerates only up to 9 digits.
func parseOandaTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	// Trim sub-nanosecond digits
	if i := bytes.IndexByte([]byte(s), '.'); i >= 0 {
		end := i + 1
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		digits := end - i - 1
		if digits > 9 {
			trimmed := s[:i+10] + s[end:]
			if ts, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
				return ts.UTC(), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
