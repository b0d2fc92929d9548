// Package alerting provides operator notification capabilities.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic key-value fields to a formatted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventTradeOpened is sent when an entry order fills.
	EventTradeOpened AlertEvent = "trade_opened"
	// EventTradeClosed is sent when a close is confirmed.
	EventTradeClosed AlertEvent = "trade_closed"
	// EventRiskHalted is sent when the risk manager halts new trading.
	EventRiskHalted AlertEvent = "risk_halted"
	// EventOrderRejected is sent when the broker refuses an order.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventCloseEscalated is sent when close retries keep failing.
	EventCloseEscalated AlertEvent = "close_escalated"
	// EventAccountRefreshFailed is sent when a cycle aborts on account refresh.
	EventAccountRefreshFailed AlertEvent = "account_refresh_failed"
	// EventStateCorrupted is sent when persisted state fails reconciliation.
	EventStateCorrupted AlertEvent = "state_corrupted"
	// EventBotStarted is sent when the bot starts.
	EventBotStarted AlertEvent = "bot_started"
	// EventBotStopped is sent when the bot stops.
	EventBotStopped AlertEvent = "bot_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventStateCorrupted:
		return SeverityCritical
	case EventRiskHalted, EventCloseEscalated:
		return SeverityHigh
	case EventOrderRejected, EventAccountRefreshFailed:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
