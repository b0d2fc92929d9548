// Package metrics exposes Prometheus instrumentation for the trading engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Recorder owns the engine's Prometheus collectors.
type Recorder struct {
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	signalsTotal    *prometheus.CounterVec
	ordersTotal     *prometheus.CounterVec
	skipsTotal      *prometheus.CounterVec
	closesTotal     *prometheus.CounterVec
	equity          prometheus.Gauge
	peakEquity      prometheus.Gauge
	drawdown        prometheus.Gauge
	openTrades      prometheus.Gauge
	tradingHalted   prometheus.Gauge
	dailyRealizedPL prometheus.Gauge
}

// NewRecorder creates a recorder and registers its collectors.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Scan cycles by outcome (ok, aborted).",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_cycle_duration_seconds",
			Help:    "Wall time per scan cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		signalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Computed signals by direction.",
		}, []string{"direction"}),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Order submissions by result (filled, rejected, error).",
		}, []string{"result"}),
		skipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_skipped_executions_total",
			Help: "Entries skipped before order submission, by reason.",
		}, []string{"reason"}),
		closesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bot_trade_closes_total",
			Help: "Trade closes by exit reason.",
		}, []string{"reason"}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_account_equity",
			Help: "Account equity in account currency.",
		}),
		peakEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_peak_equity",
			Help: "High-water mark of account equity.",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_drawdown_ratio",
			Help: "Current drawdown from peak equity (0-1).",
		}),
		openTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_open_trades",
			Help: "Number of currently open trades.",
		}),
		tradingHalted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_trading_halted",
			Help: "1 when risk limits have halted new entries.",
		}),
		dailyRealizedPL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bot_daily_realized_pl",
			Help: "Realized profit and loss since the UTC day start.",
		}),
	}

	reg.MustRegister(
		r.cyclesTotal, r.cycleDuration, r.signalsTotal, r.ordersTotal,
		r.skipsTotal, r.closesTotal, r.equity, r.peakEquity, r.drawdown,
		r.openTrades, r.tradingHalted, r.dailyRealizedPL,
	)
	return r
}

// CycleCompleted records a finished scan cycle.
func (r *Recorder) CycleCompleted(seconds float64) {
	r.cyclesTotal.WithLabelValues("ok").Inc()
	r.cycleDuration.Observe(seconds)
}

// CycleAborted records a cycle abandoned before decisions were made.
func (r *Recorder) CycleAborted() {
	r.cyclesTotal.WithLabelValues("aborted").Inc()
}

// SignalComputed records a signal by direction.
func (r *Recorder) SignalComputed(direction string) {
	r.signalsTotal.WithLabelValues(direction).Inc()
}

// OrderResult records an order submission outcome.
func (r *Recorder) OrderResult(result string) {
	r.ordersTotal.WithLabelValues(result).Inc()
}

// ExecutionSkipped records an entry skipped before submission.
func (r *Recorder) ExecutionSkipped(reason string) {
	r.skipsTotal.WithLabelValues(reason).Inc()
}

// TradeClosed records a close by exit reason.
func (r *Recorder) TradeClosed(reason string) {
	r.closesTotal.WithLabelValues(reason).Inc()
}

// SetAccount updates the account-level gauges.
func (r *Recorder) SetAccount(equity, peak, dd, dailyPL decimal.Decimal) {
	r.equity.Set(equity.InexactFloat64())
	r.peakEquity.Set(peak.InexactFloat64())
	r.drawdown.Set(dd.InexactFloat64())
	r.dailyRealizedPL.Set(dailyPL.InexactFloat64())
}

// SetOpenTrades updates the open trade gauge.
func (r *Recorder) SetOpenTrades(n int) {
	r.openTrades.Set(float64(n))
}

// SetHalted updates the trading halt gauge.
func (r *Recorder) SetHalted(halted bool) {
	if halted {
		r.tradingHalted.Set(1)
	} else {
		r.tradingHalted.Set(0)
	}
}
