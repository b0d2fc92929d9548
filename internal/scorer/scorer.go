// Package scorer computes per-instrument trade signals from price history.
package scorer

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
	"github.com/dommurphy155/Very-last-try/pkg/indicator"
)

// Config holds indicator periods and thresholds.
type Config struct {
	MinHistory    int
	RSIPeriod     int
	RSIOversold   int
	RSIOverbought int
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BandPeriod    int
	ATRPeriod     int

	// PerformanceBias selects how the per-instrument weight adjusts raw
	// confidence: "multiplicative" scales by the weight, "additive"
	// shifts by (weight - 1).
	PerformanceBias string
}

// DefaultConfig returns the standard indicator settings.
func DefaultConfig() Config {
	return Config{
		MinHistory:      50,
		RSIPeriod:       14,
		RSIOversold:     30,
		RSIOverbought:   70,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BandPeriod:      20,
		ATRPeriod:       14,
		PerformanceBias: "multiplicative",
	}
}

// Scorer derives a direction and confidence score from recent candles.
// Deterministic for identical history.
type Scorer struct {
	cfg    Config
	logger *slog.Logger
}

// NewScorer creates a scorer.
func NewScorer(cfg Config, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cfg: cfg, logger: logger}
}

var (
	one           = decimal.NewFromInt(1)
	two           = decimal.NewFromInt(2)
	regimeCap     = decimal.RequireFromString("1.5")
	agreeBonus    = decimal.RequireFromString("1.25")
	regimePenalty = decimal.RequireFromString("0.5")
)

// Score computes the signal for one instrument. With fewer than
// MinHistory candles it returns direction none and confidence zero; it
// never fabricates a signal from insufficient data.
func (s *Scorer) Score(instrument string, candles []types.Candle, perf *types.PerformanceRecord) types.InstrumentSignal {
	signal := types.InstrumentSignal{
		Instrument: instrument,
		Direction:  types.SideFlat,
		Confidence: decimal.Zero,
	}

	spec, ok := types.GetInstrumentSpec(instrument)
	if !ok {
		signal.Reason = "unknown instrument"
		return signal
	}

	if len(candles) < s.cfg.MinHistory {
		signal.Reason = fmt.Sprintf("history %d < required %d", len(candles), s.cfg.MinHistory)
		return signal
	}

	rsi := indicator.NewRSI(s.cfg.RSIPeriod)
	macd := indicator.NewMACD(s.cfg.MACDFast, s.cfg.MACDSlow, s.cfg.MACDSignal)
	band := indicator.NewStdDev(s.cfg.BandPeriod)
	bandMean := indicator.NewSMA(s.cfg.BandPeriod)
	atr := indicator.NewATR(s.cfg.ATRPeriod)

	// Long-horizon true-range mean for the volatility regime guard.
	trSum := decimal.Zero
	var prevClose decimal.Decimal

	var rsiVal decimal.Decimal
	for i, c := range candles {
		rsiVal = rsi.Update(c.Close)
		macd.Update(c.Close)
		band.Update(c.Close)
		bandMean.Update(c.Close)
		atr.Update(c.High, c.Low, c.Close)

		tr := c.High.Sub(c.Low)
		if i > 0 {
			if hpc := c.High.Sub(prevClose).Abs(); hpc.GreaterThan(tr) {
				tr = hpc
			}
			if lpc := c.Low.Sub(prevClose).Abs(); lpc.GreaterThan(tr) {
				tr = lpc
			}
		}
		trSum = trSum.Add(tr)
		prevClose = c.Close
	}

	if !macd.Ready() || !atr.Ready() || !band.Ready() {
		signal.Reason = "indicators not warmed up"
		return signal
	}

	last := candles[len(candles)-1].Close
	atrVal := atr.Current()
	signal.ATRPips = atrVal.Div(spec.PipSize)

	// Momentum: MACD histogram normalized by ATR, clamped to [-1, 1].
	hist := macd.Histogram()
	if !atrVal.IsZero() {
		signal.Momentum = clamp(hist.Div(atrVal), one.Neg(), one)
	}

	// Mean reversion: distance from the reference band in standard
	// deviations; price below the band biases long.
	sd := band.Current()
	if !sd.IsZero() {
		z := last.Sub(bandMean.Current()).Div(sd)
		signal.Reversion = clamp(z.Neg().Div(two), one.Neg(), one)
	}

	oversold := decimal.NewFromInt(int64(s.cfg.RSIOversold))
	overbought := decimal.NewFromInt(int64(s.cfg.RSIOverbought))

	switch {
	case rsiVal.LessThan(oversold) && hist.GreaterThan(decimal.Zero):
		signal.Direction = types.SideLong
	case rsiVal.GreaterThan(overbought) && hist.LessThan(decimal.Zero):
		signal.Direction = types.SideShort
	default:
		signal.Reason = fmt.Sprintf("no setup (rsi=%s)", rsiVal.StringFixed(1))
		return signal
	}

	confidence := signal.Momentum.Abs().Add(signal.Reversion.Abs()).Div(two)

	// Agreement between momentum and mean reversion raises confidence.
	if signal.Momentum.Mul(signal.Reversion).GreaterThan(decimal.Zero) {
		confidence = confidence.Mul(agreeBonus)
	}

	// Regime guard: abnormally high volatility versus the long-horizon
	// true-range mean cuts confidence.
	longTR := trSum.Div(decimal.NewFromInt(int64(len(candles))))
	if !longTR.IsZero() && atrVal.GreaterThan(longTR.Mul(regimeCap)) {
		confidence = confidence.Mul(regimePenalty)
	}

	confidence = s.applyPerformanceBias(confidence, perf)
	signal.Confidence = clamp(confidence, decimal.Zero, one)
	signal.Reason = fmt.Sprintf("rsi=%s macd_hist=%s", rsiVal.StringFixed(1), hist.StringFixed(6))

	return signal
}

// applyPerformanceBias folds the instrument's rolling weight into the raw
// confidence according to the configured policy.
func (s *Scorer) applyPerformanceBias(confidence decimal.Decimal, perf *types.PerformanceRecord) decimal.Decimal {
	if perf == nil || perf.Weight.IsZero() {
		return confidence
	}
	if s.cfg.PerformanceBias == "additive" {
		return confidence.Add(perf.Weight.Sub(one))
	}
	return confidence.Mul(perf.Weight)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
