package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/alerting"
	"github.com/dommurphy155/Very-last-try/internal/telegram"
	"github.com/dommurphy155/Very-last-try/internal/types"
)

// handleCommand services one operator command on the engine goroutine,
// so it reads and mutates state without racing the cycle loop.
func (e *Engine) handleCommand(ctx context.Context, cmd telegram.Command) {
	e.logger.Info("handling operator command", "command", cmd.Kind.String())

	var reply string
	switch cmd.Kind {
	case telegram.KindStatus:
		reply = e.statusText()
	case telegram.KindOpenTrades:
		reply = e.openTradesText(ctx)
	case telegram.KindMakeTrade:
		reply = e.makeTrade(ctx, cmd.Instrument)
	case telegram.KindCloseAll:
		reply = e.closeAll(ctx)
	case telegram.KindStop:
		reply = "Stopping. Open trades stay with the broker; state is saved."
		e.stop()
	case telegram.KindDailyReport:
		reply = e.reportText(ctx, e.now().UTC().Truncate(24*time.Hour), e.now(), true)
	case telegram.KindWeeklyReport:
		reply = e.reportText(ctx, e.now().Add(-7*24*time.Hour), e.now(), false)
	default:
		reply = fmt.Sprintf("unsupported command: %s", cmd.Kind)
	}

	select {
	case cmd.Reply <- reply:
	default:
	}
}

func (e *Engine) statusText() string {
	var b strings.Builder

	switch {
	case e.fatal:
		fmt.Fprintf(&b, "⛔ STOPPED: %s\n", e.fatalReason)
	case e.readOnly:
		b.WriteString("⛔ HALTED (state corrupted, read-only)\n")
	case e.halted:
		fmt.Fprintf(&b, "⛔ HALTED: %s\n", e.haltReason)
	default:
		b.WriteString("✅ Trading\n")
	}

	if e.lastSnapshot != nil {
		fmt.Fprintf(&b, "Equity: %s %s\n", e.lastSnapshot.Equity.StringFixed(2), e.lastSnapshot.Currency)
		fmt.Fprintf(&b, "Drawdown: %s%%\n",
			e.hwm.Drawdown().Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
	fmt.Fprintf(&b, "Daily P/L: %s (W %d / L %d)\n",
		e.state.DailyRealizedPL.StringFixed(2), e.state.WinsToday, e.state.LossesToday)
	fmt.Fprintf(&b, "Loss streak: %d\n", e.state.ConsecutiveLosses)
	fmt.Fprintf(&b, "Open trades: %d\n", len(e.state.OpenTrades))
	fmt.Fprintf(&b, "Skipped executions: %d\n", e.state.SkippedExecutions)
	if !e.state.LastCycleAt.IsZero() {
		fmt.Fprintf(&b, "Last cycle: %s", e.state.LastCycleAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func (e *Engine) openTradesText(ctx context.Context) string {
	if len(e.state.OpenTrades) == 0 {
		return "No open trades."
	}

	ids := make([]string, 0, len(e.state.OpenTrades))
	for id := range e.state.OpenTrades {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Open trades (%d):\n", len(ids))
	for _, id := range ids {
		t := e.state.OpenTrades[id]
		pips := t.UnrealizedPips
		if price, err := e.gw.Price(ctx, t.Instrument); err == nil {
			if spec, ok := types.GetInstrumentSpec(t.Instrument); ok {
				pips = types.UnrealizedPips(spec, t.Side, t.EntryPrice, price)
			}
		}
		fmt.Fprintf(&b, "• %s %s %d @ %s | %s pips | %s | held %s\n",
			t.Instrument, t.Side, t.Units, t.EntryPrice.String(),
			pips.StringFixed(1), t.State,
			e.now().Sub(t.OpenedAt).Truncate(time.Minute))
	}
	return b.String()
}

// makeTrade runs a targeted scan-and-enter for one instrument, subject
// to the same risk gates and cooldowns as the cycle.
func (e *Engine) makeTrade(ctx context.Context, instrument string) string {
	if e.fatal {
		return "Trading is stopped: the broker rejected the account credentials."
	}
	if e.readOnly {
		return "Trading is halted: state file is corrupted."
	}
	if e.lastSnapshot == nil {
		return "No account snapshot yet; try again after the next cycle."
	}
	for _, t := range e.state.OpenTrades {
		if t.Instrument == instrument {
			return fmt.Sprintf("%s already has an open trade.", instrument)
		}
	}

	bars, err := e.gw.Candles(ctx, instrument, e.cfg.Market.CandleCount)
	if err != nil {
		return fmt.Sprintf("Candle fetch failed: %v", err)
	}

	sig := e.scorer.Score(instrument, bars, e.state.PerformanceFor(instrument))
	if sig.Direction == types.SideFlat {
		return fmt.Sprintf("%s: no directional signal (%s)", instrument, sig.Reason)
	}
	if !sig.Confidence.GreaterThan(e.cfg.ConfidenceThresholdDecimal()) {
		return fmt.Sprintf("%s: confidence %s below threshold", instrument, sig.Confidence.StringFixed(2))
	}

	if e.enter(ctx, e.lastSnapshot, sig, bars) {
		e.persist(ctx, e.lastSnapshot)
		return fmt.Sprintf("Opened %s %s, confidence %s.",
			instrument, sig.Direction, sig.Confidence.StringFixed(2))
	}
	return fmt.Sprintf("%s: entry was not taken; see logs for the reason.", instrument)
}

// closeAll force-closes every open trade.
func (e *Engine) closeAll(ctx context.Context) string {
	if len(e.state.OpenTrades) == 0 {
		return "No open trades."
	}

	ids := make([]string, 0, len(e.state.OpenTrades))
	for id := range e.state.OpenTrades {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	closed, failed := 0, 0
	for _, id := range ids {
		trade := e.state.OpenTrades[id]

		price, err := e.gw.Price(ctx, trade.Instrument)
		if err != nil {
			failed++
			e.logger.Warn("close-all price fetch failed", "trade_id", id, "err", err)
			continue
		}

		res, err := e.lifecycle.Close(ctx, trade, price)
		if err != nil {
			failed++
			continue
		}
		if res.Closed != nil {
			e.applyClose(ctx, res.Closed)
			closed++
		}
	}

	if !e.readOnly {
		if err := e.store.Save(ctx, e.state); err != nil {
			e.logger.Error("state save failed after close-all", "err", err)
		}
	}

	if failed > 0 {
		return fmt.Sprintf("Closed %d trade(s); %d failed and will retry next cycle.", closed, failed)
	}
	return fmt.Sprintf("Closed %d trade(s).", closed)
}

func (e *Engine) reportText(ctx context.Context, from, to time.Time, daily bool) string {
	if e.journal == nil {
		return "Journal is disabled; no reports available."
	}

	report, err := e.journal.Report(ctx, from, to)
	if err != nil {
		return fmt.Sprintf("Report failed: %v", err)
	}

	if daily {
		equity := decimal.Zero
		if e.lastSnapshot != nil {
			equity = e.lastSnapshot.Equity
		}
		return alerting.FormatDailySummary(*report, equity, len(e.state.OpenTrades))
	}
	return alerting.FormatWeeklySummary(*report)
}
