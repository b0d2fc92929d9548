// Package telegram polls the Telegram Bot API for operator commands and
// forwards them to the trading engine.
package telegram

import (
	"fmt"
	"strings"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

// CommandKind identifies an operator command.
type CommandKind int

const (
	// KindStatus requests a one-line account and risk summary.
	KindStatus CommandKind = iota
	// KindOpenTrades requests the list of currently open trades.
	KindOpenTrades
	// KindMakeTrade requests an immediate scan-and-enter for one instrument.
	KindMakeTrade
	// KindCloseAll requests closing every open trade.
	KindCloseAll
	// KindStop requests a graceful shutdown.
	KindStop
	// KindDailyReport requests the current day's trade report.
	KindDailyReport
	// KindWeeklyReport requests the trailing seven-day trade report.
	KindWeeklyReport
)

// String returns the command name.
func (k CommandKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindOpenTrades:
		return "opentrades"
	case KindMakeTrade:
		return "maketrade"
	case KindCloseAll:
		return "closeall"
	case KindStop:
		return "stop"
	case KindDailyReport:
		return "dailyreport"
	case KindWeeklyReport:
		return "weeklyreport"
	default:
		return "unknown"
	}
}

// Command is a parsed operator command. The handler writes its response
// text to Reply; the poller relays it back to the chat.
type Command struct {
	Kind       CommandKind
	Instrument string
	Reply      chan string
}

// ParseCommand parses a Telegram message text into a command. Bot-mention
// suffixes ("/status@mybot") are stripped.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, fmt.Errorf("not a command: %q", text)
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	cmd := Command{Reply: make(chan string, 1)}
	switch strings.ToLower(name) {
	case "status":
		cmd.Kind = KindStatus
	case "opentrades":
		cmd.Kind = KindOpenTrades
	case "maketrade":
		cmd.Kind = KindMakeTrade
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("usage: /maketrade <instrument>")
		}
		instrument := normalizeInstrument(fields[1])
		if _, ok := types.GetInstrumentSpec(instrument); !ok {
			return Command{}, fmt.Errorf("%w: %s", types.ErrInvalidSymbol, fields[1])
		}
		cmd.Instrument = instrument
	case "closeall":
		cmd.Kind = KindCloseAll
	case "stop":
		cmd.Kind = KindStop
	case "dailyreport":
		cmd.Kind = KindDailyReport
	case "weeklyreport":
		cmd.Kind = KindWeeklyReport
	default:
		return Command{}, fmt.Errorf("unknown command: /%s", name)
	}
	return cmd, nil
}

// normalizeInstrument accepts "eurusd", "EUR/USD" and "EUR_USD" forms.
func normalizeInstrument(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "/", "_")
	if !strings.Contains(s, "_") && len(s) == 6 {
		s = s[:3] + "_" + s[3:]
	}
	return s
}
