// Package engine runs the trading cycle: scan, score, decide, execute,
// manage exits, persist.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dommurphy155/Very-last-try/internal/alerting"
	"github.com/dommurphy155/Very-last-try/internal/config"
	"github.com/dommurphy155/Very-last-try/internal/executor"
	"github.com/dommurphy155/Very-last-try/internal/gateway"
	"github.com/dommurphy155/Very-last-try/internal/journal"
	"github.com/dommurphy155/Very-last-try/internal/lifecycle"
	"github.com/dommurphy155/Very-last-try/internal/metrics"
	"github.com/dommurphy155/Very-last-try/internal/risk"
	"github.com/dommurphy155/Very-last-try/internal/scorer"
	"github.com/dommurphy155/Very-last-try/internal/sizer"
	"github.com/dommurphy155/Very-last-try/internal/statestore"
	"github.com/dommurphy155/Very-last-try/internal/telegram"
	"github.com/dommurphy155/Very-last-try/internal/types"
)

// snapshotFailureAlertAfter is the number of consecutive aborted cycles
// before the operator is notified.
const snapshotFailureAlertAfter = 3

// Engine owns the bot state and runs the periodic trading cycle. All
// state mutation happens on the Run goroutine; operator commands are
// queued and drained there too, so no locks guard BotState itself.
type Engine struct {
	cfg       *config.Config
	gw        gateway.Gateway
	store     *statestore.Store
	journal   journal.Journal // nil when disabled
	risk      *risk.Manager
	scorer    *scorer.Scorer
	sizer     *sizer.PositionSizer
	executor  *executor.Executor
	lifecycle *lifecycle.Manager
	alerter   alerting.Alerter
	recorder  *metrics.Recorder // nil when disabled
	logger    *slog.Logger

	commands chan telegram.Command
	stop     context.CancelFunc

	state        *statestore.BotState
	hwm          *risk.HighWaterMarkTracker
	lastSnapshot *types.AccountSnapshot
	halted       bool
	haltReason   string
	readOnly     bool // set on state corruption; no trading, no saves
	fatal        bool // set on permanent broker rejection; scheduling stops
	fatalReason  string
	snapFailures int
	now          func() time.Time
}

// Deps bundle the engine's collaborators.
type Deps struct {
	Config    *config.Config
	Gateway   gateway.Gateway
	Store     *statestore.Store
	Journal   journal.Journal
	Risk      *risk.Manager
	Scorer    *scorer.Scorer
	Sizer     *sizer.PositionSizer
	Executor  *executor.Executor
	Lifecycle *lifecycle.Manager
	Alerter   alerting.Alerter
	Recorder  *metrics.Recorder
	Logger    *slog.Logger
	Stop      context.CancelFunc // invoked by the /stop command
}

// New creates the engine. Call Bootstrap before Run.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stop := d.Stop
	if stop == nil {
		stop = func() {}
	}
	return &Engine{
		cfg:       d.Config,
		gw:        d.Gateway,
		store:     d.Store,
		journal:   d.Journal,
		risk:      d.Risk,
		scorer:    d.Scorer,
		sizer:     d.Sizer,
		executor:  d.Executor,
		lifecycle: d.Lifecycle,
		alerter:   d.Alerter,
		recorder:  d.Recorder,
		logger:    logger,
		commands:  make(chan telegram.Command, 16),
		stop:      stop,
		hwm:       risk.NewHighWaterMarkTracker(decimal.Zero),
		now:       time.Now,
	}
}

// Commands returns the sink for operator commands.
func (e *Engine) Commands() chan<- telegram.Command {
	return e.commands
}

// Bootstrap loads persisted state and reconciles it against the broker's
// view of open trades. Corrupted state puts the engine into a read-only
// halt instead of trading on guessed numbers.
func (e *Engine) Bootstrap(ctx context.Context) error {
	state, err := e.store.Load(ctx)
	if err != nil {
		var corrupt *types.StateCorruptionError
		if errors.As(err, &corrupt) {
			e.logger.Error("state file corrupted, entering read-only halt",
				"path", corrupt.Path, "err", corrupt.Err)
			e.alert(ctx, alerting.SeverityCritical,
				"State file is corrupted. Trading is halted until the file is repaired or removed.",
				"path", corrupt.Path)
			e.state = statestore.NewBotState()
			e.readOnly = true
			e.halted = true
			e.haltReason = "state file corrupted"
			return nil
		}
		return fmt.Errorf("loading state: %w", err)
	}
	e.state = state
	e.hwm = risk.Restore(state.PeakEquity, state.PeakEquity)

	if err := e.reconcile(ctx); err != nil {
		return err
	}

	e.logger.Info("state loaded",
		"open_trades", len(e.state.OpenTrades),
		"peak_equity", e.state.PeakEquity,
		"day", e.state.Day,
	)
	return nil
}

// reconcile drops local trades the broker no longer reports. The broker
// is authoritative; a missing remote trade was closed while the bot was
// down, so holding it locally would manage a phantom position.
func (e *Engine) reconcile(ctx context.Context) error {
	remote, err := e.gw.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("listing broker trades: %w", err)
	}

	remoteIDs := make(map[string]bool, len(remote))
	for _, rt := range remote {
		remoteIDs[rt.ID] = true
	}

	for id, trade := range e.state.OpenTrades {
		if !remoteIDs[id] {
			e.logger.Warn("dropping trade closed while offline",
				"trade_id", id, "instrument", trade.Instrument)
			delete(e.state.OpenTrades, id)
		}
	}

	for _, rt := range remote {
		if _, ok := e.state.OpenTrades[rt.ID]; !ok {
			e.logger.Warn("broker reports a trade unknown to local state",
				"trade_id", rt.ID, "instrument", rt.Instrument)
		}
	}
	return nil
}

// Run executes the cycle loop until the context is cancelled, draining
// operator commands between cycles. On shutdown the current state is
// persisted before returning.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.ScanInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("engine started", "scan_interval", interval.String())
	e.alert(ctx, alerting.SeverityInfo, "Bot started",
		"instruments", fmt.Sprintf("%v", e.cfg.Market.Instruments),
		"scan_interval", interval.String())

	// First cycle immediately rather than one interval from now.
	e.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case cmd := <-e.commands:
			e.handleCommand(ctx, cmd)
		case <-ticker.C:
			e.runCycle(ctx)
		}
	}
}

func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !e.readOnly {
		if err := e.store.Save(ctx, e.state); err != nil {
			e.logger.Error("saving state on shutdown failed", "err", err)
		}
	}
	e.alert(ctx, alerting.SeverityInfo, "Bot stopped",
		"open_trades", len(e.state.OpenTrades))
	e.logger.Info("engine stopped")
}

// runCycle is one full pass: refresh account, manage exits, roll the day,
// evaluate risk, scan and score, enter, persist.
func (e *Engine) runCycle(ctx context.Context) {
	if e.fatal {
		return
	}
	start := e.now()

	snap, err := e.gw.AccountSnapshot(ctx)
	if err != nil {
		e.handleSnapshotFailure(ctx, err)
		return
	}
	e.snapFailures = 0
	e.lastSnapshot = snap

	// Exits first. An open trade's risk is live right now; a missed
	// entry just waits a cycle.
	e.manageOpenTrades(ctx)

	if e.state.RollDay(start, snap.Equity) {
		e.logger.Info("trading day rolled over",
			"day", e.state.Day, "start_equity", snap.Equity)
		e.sendDailySummary(ctx, start)
	}
	e.hwm.Update(snap.Equity)
	e.state.PeakEquity = e.hwm.Peak()

	if !e.readOnly {
		e.scanAndEnter(ctx, snap)
	}

	e.state.LastCycleAt = start
	e.persist(ctx, snap)

	if e.recorder != nil {
		_, peak, dd := e.hwm.Snapshot()
		e.recorder.SetAccount(snap.Equity, peak, dd, e.state.DailyRealizedPL)
		e.recorder.SetOpenTrades(len(e.state.OpenTrades))
		e.recorder.SetHalted(e.halted)
		e.recorder.CycleCompleted(e.now().Sub(start).Seconds())
	}
}

// handleSnapshotFailure decides whether an account refresh error is worth
// retrying. A permanent rejection (revoked key, wrong account) would fail
// every future attempt the same way, so scheduling stops and only the
// operator command channel stays alive.
func (e *Engine) handleSnapshotFailure(ctx context.Context, err error) {
	if e.recorder != nil {
		e.recorder.CycleAborted()
	}

	var gerr *types.GatewayError
	if errors.As(err, &gerr) && !gerr.Transient {
		e.fatal = true
		e.fatalReason = gerr.Error()
		e.logger.Error("account refresh permanently rejected, scheduling stopped", "err", err)
		e.alert(ctx, alerting.SeverityCritical,
			"Broker rejected the account credentials. Scheduling is stopped; check the API key and restart the bot.",
			"err", err.Error())
		if !e.readOnly {
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.store.Save(saveCtx, e.state); err != nil {
				e.logger.Error("state save after fatal gateway error failed", "err", err)
			}
		}
		return
	}

	e.snapFailures++
	e.logger.Warn("cycle aborted: account refresh failed",
		"err", err, "consecutive_failures", e.snapFailures)
	if e.snapFailures == snapshotFailureAlertAfter {
		e.alert(ctx, alerting.SeverityWarning,
			"Account refresh keeps failing; no trading decisions are being made.",
			"consecutive_failures", e.snapFailures)
	}
}

// manageOpenTrades advances the exit state machine for every open trade.
// Trades are visited in a stable order so behavior is reproducible.
func (e *Engine) manageOpenTrades(ctx context.Context) {
	ids := make([]string, 0, len(e.state.OpenTrades))
	for id := range e.state.OpenTrades {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		trade := e.state.OpenTrades[id]

		price, err := e.gw.Price(ctx, trade.Instrument)
		if err != nil {
			e.logger.Warn("price fetch failed, trade carried to next cycle",
				"trade_id", id, "instrument", trade.Instrument, "err", err)
			continue
		}

		res, err := e.lifecycle.Advance(ctx, trade, price, e.now())
		if err != nil {
			if res.Escalate {
				e.alert(ctx, alerting.SeverityHigh,
					"Close order keeps failing; position is still open at the broker.",
					"trade_id", id,
					"instrument", trade.Instrument,
					"attempts", trade.CloseAttempts,
					"reason", res.ExitReason)
			}
			continue
		}
		if res.Closed != nil {
			e.applyClose(ctx, res.Closed)
		}
	}
}

// applyClose folds a confirmed close into state, the journal and metrics.
func (e *Engine) applyClose(ctx context.Context, closed *types.ClosedTrade) {
	e.state.ApplyClose(closed)

	if e.journal != nil {
		if err := e.journal.SaveTrade(ctx, *closed); err != nil {
			e.logger.Error("journaling closed trade failed", "trade_id", closed.ID, "err", err)
		}
	}
	if e.recorder != nil {
		e.recorder.TradeClosed(closed.ExitReason)
	}

	e.alert(ctx, alerting.SeverityInfo, "Trade closed",
		"instrument", closed.Instrument,
		"side", closed.Side.String(),
		"pips", closed.RealizedPips.StringFixed(1),
		"pl", closed.RealizedPL.StringFixed(2),
		"reason", closed.ExitReason)
}

// scanAndEnter scores the watchlist and opens up to the per-cycle cap of
// new positions, risk permitting.
func (e *Engine) scanAndEnter(ctx context.Context, snap *types.AccountSnapshot) {
	// One gate pass with full confidence decides the halt state; the
	// per-candidate pass below sizes actual risk. Margin is checked per
	// entry, where an instrument and a price exist.
	gate := e.risk.Evaluate(e.riskInput(snap, decimal.NewFromInt(1), decimal.Zero))
	if !gate.Allowed {
		if !e.halted {
			e.logger.Error("trading halted", "reason", gate.Reason)
			e.alert(ctx, alerting.SeverityHigh, "Trading halted by risk limits.",
				"reason", gate.Reason,
				"equity", snap.Equity.StringFixed(2),
				"daily_pl", e.state.DailyRealizedPL.StringFixed(2),
				"consecutive_losses", e.state.ConsecutiveLosses)
		}
		e.halted = true
		e.haltReason = gate.Reason
		return
	}
	if e.halted {
		e.logger.Info("trading resumed", "previous_reason", e.haltReason)
		e.halted = false
		e.haltReason = ""
	}

	candles := e.fetchCandles(ctx)
	signals := e.scoreAll(candles)

	threshold := e.cfg.ConfidenceThresholdDecimal()
	candidates := rankCandidates(signals, threshold)

	opened := 0
	for _, sig := range candidates {
		if opened >= e.cfg.Execution.MaxNewTradesPerCycle {
			break
		}
		if e.enter(ctx, snap, sig, candles[sig.Instrument]) {
			opened++
		}
	}
}

// fetchCandles pulls history for every watched instrument concurrently.
// A failed instrument is skipped this cycle, not fatal.
func (e *Engine) fetchCandles(ctx context.Context) map[string][]types.Candle {
	var (
		mu      sync.Mutex
		candles = make(map[string][]types.Candle, len(e.cfg.Market.Instruments))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, instrument := range e.cfg.Market.Instruments {
		instrument := instrument
		g.Go(func() error {
			bars, err := e.gw.Candles(gctx, instrument, e.cfg.Market.CandleCount)
			if err != nil {
				e.logger.Warn("candle fetch failed, instrument skipped this cycle",
					"instrument", instrument, "err", err)
				return nil
			}
			mu.Lock()
			candles[instrument] = bars
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return candles
}

// scoreAll computes a signal per instrument, skipping ones that already
// carry an open position.
func (e *Engine) scoreAll(candles map[string][]types.Candle) []types.InstrumentSignal {
	held := make(map[string]bool, len(e.state.OpenTrades))
	for _, trade := range e.state.OpenTrades {
		held[trade.Instrument] = true
	}

	signals := make([]types.InstrumentSignal, 0, len(candles))
	for _, instrument := range e.cfg.Market.Instruments {
		bars, ok := candles[instrument]
		if !ok || held[instrument] {
			continue
		}

		sig := e.scorer.Score(instrument, bars, e.state.PerformanceFor(instrument))
		if e.recorder != nil {
			e.recorder.SignalComputed(sig.Direction.String())
		}
		signals = append(signals, sig)
	}
	return signals
}

// rankCandidates filters to directional signals above the threshold and
// orders them by confidence descending, instrument ascending on ties.
func rankCandidates(signals []types.InstrumentSignal, threshold decimal.Decimal) []types.InstrumentSignal {
	candidates := make([]types.InstrumentSignal, 0, len(signals))
	for _, sig := range signals {
		if sig.Direction != types.SideFlat && sig.Confidence.GreaterThan(threshold) {
			candidates = append(candidates, sig)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Confidence.Equal(candidates[j].Confidence) {
			return candidates[i].Confidence.GreaterThan(candidates[j].Confidence)
		}
		return candidates[i].Instrument < candidates[j].Instrument
	})
	return candidates
}

// enter sizes and submits one entry. Returns true when a trade opened.
func (e *Engine) enter(ctx context.Context, snap *types.AccountSnapshot, sig types.InstrumentSignal, bars []types.Candle) bool {
	spec, ok := types.GetInstrumentSpec(sig.Instrument)
	if !ok || len(bars) == 0 {
		return false
	}
	entryEstimate := bars[len(bars)-1].Close

	minMargin := entryEstimate.Mul(decimal.NewFromInt(spec.MinUnits)).Mul(e.executor.MarginRate())
	decision := e.risk.Evaluate(e.riskInput(snap, sig.Confidence, minMargin))
	if !decision.Allowed {
		e.skip("risk", "entry blocked by risk manager", sig.Instrument, decision.Reason)
		return false
	}

	plan := e.sizer.Size(sig, decision.RiskFraction, snap.Equity, entryEstimate, spec)
	if !plan.Valid {
		e.skip("plan_rejected", "sizing rejected entry", sig.Instrument, plan.RejectReason)
		return false
	}

	trade, err := e.executor.Execute(ctx, sig, plan)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrCooldownActive):
			e.state.SkippedExecutions++
			e.skip("cooldown", "entry skipped by cooldown", sig.Instrument, err.Error())
		case errors.Is(err, types.ErrInsufficientMargin):
			e.skip("margin", "entry skipped on margin re-check", sig.Instrument, err.Error())
		default:
			var rejected *types.RejectedOrderError
			if errors.As(err, &rejected) {
				if e.recorder != nil {
					e.recorder.OrderResult("rejected")
				}
				e.alert(ctx, alerting.SeverityWarning, "Broker rejected the order.",
					"instrument", rejected.Instrument, "reason", rejected.Reason)
			} else {
				if e.recorder != nil {
					e.recorder.OrderResult("error")
				}
				e.logger.Error("order submission failed", "instrument", sig.Instrument, "err", err)
			}
		}
		return false
	}

	e.state.AddTrade(trade)
	if e.recorder != nil {
		e.recorder.OrderResult("filled")
	}
	e.alert(ctx, alerting.SeverityInfo, "Trade opened",
		"instrument", trade.Instrument,
		"side", trade.Side.String(),
		"units", trade.Units,
		"entry", trade.EntryPrice.String(),
		"stop", trade.StopLoss.String(),
		"target", trade.TakeProfit.String(),
		"confidence", sig.Confidence.StringFixed(2))
	return true
}

func (e *Engine) skip(metricReason, msg, instrument, detail string) {
	if e.recorder != nil {
		e.recorder.ExecutionSkipped(metricReason)
	}
	e.logger.Info(msg, "instrument", instrument, "detail", detail)
}

func (e *Engine) riskInput(snap *types.AccountSnapshot, confidence, minMargin decimal.Decimal) risk.EvalInput {
	return risk.EvalInput{
		Equity:            snap.Equity,
		PeakEquity:        e.hwm.Peak(),
		StartOfDayEquity:  e.state.StartOfDayEquity,
		DailyRealizedPL:   e.state.DailyRealizedPL,
		ConsecutiveLosses: e.state.ConsecutiveLosses,
		MarginAvailable:   snap.MarginAvailable,
		MinPositionMargin: minMargin,
		Confidence:        confidence,
	}
}

// persist writes the state document and an equity observation.
func (e *Engine) persist(ctx context.Context, snap *types.AccountSnapshot) {
	if !e.readOnly {
		if err := e.store.Save(ctx, e.state); err != nil {
			e.logger.Error("state save failed", "err", err)
		}
	}

	if e.journal != nil {
		point := journal.EquityPoint{
			Timestamp:  e.now(),
			Equity:     snap.Equity,
			PeakEquity: e.hwm.Peak(),
			Drawdown:   e.hwm.Drawdown(),
			OpenTrades: len(e.state.OpenTrades),
			DailyPL:    e.state.DailyRealizedPL,
		}
		if err := e.journal.SaveEquityPoint(ctx, point); err != nil {
			e.logger.Warn("equity journaling failed", "err", err)
		}
	}
}

// sendDailySummary alerts the previous day's report after rollover.
func (e *Engine) sendDailySummary(ctx context.Context, now time.Time) {
	if e.journal == nil {
		return
	}

	to := now.UTC().Truncate(24 * time.Hour)
	from := to.Add(-24 * time.Hour)
	report, err := e.journal.Report(ctx, from, to)
	if err != nil {
		e.logger.Warn("daily report failed", "err", err)
		return
	}

	equity := decimal.Zero
	if e.lastSnapshot != nil {
		equity = e.lastSnapshot.Equity
	}
	e.alert(ctx, alerting.SeverityInfo,
		alerting.FormatDailySummary(*report, equity, len(e.state.OpenTrades)))
}

func (e *Engine) alert(ctx context.Context, severity alerting.Severity, msg string, fields ...any) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, severity, msg, fields...); err != nil {
		e.logger.Warn("alert delivery failed", "err", err)
	}
}
