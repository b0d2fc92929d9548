package alerting

import (
	"context"
	"log/slog"
)

// ConsoleAlerter writes alerts to the structured logger.
type ConsoleAlerter struct {
	logger *slog.Logger
}

// NewConsoleAlerter creates a new console alerter.
func NewConsoleAlerter(logger *slog.Logger) *ConsoleAlerter {
	return &ConsoleAlerter{logger: logger}
}

// Name returns the name of the alerter.
func (c *ConsoleAlerter) Name() string {
	return "console"
}

// Alert logs the alert at a level matching its severity.
func (c *ConsoleAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	attrs := append([]any{"severity", severity.String()}, fields...)
	switch severity {
	case SeverityCritical, SeverityHigh:
		c.logger.ErrorContext(ctx, message, attrs...)
	case SeverityWarning:
		c.logger.WarnContext(ctx, message, attrs...)
	default:
		c.logger.InfoContext(ctx, message, attrs...)
	}
	return nil
}
