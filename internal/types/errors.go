package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the trading system.
var (
	// Risk errors
	ErrTradingHalted      = errors.New("trading halted by risk manager")
	ErrInsufficientMargin = errors.New("insufficient margin for position size")

	// Execution errors
	ErrCooldownActive  = errors.New("execution cooldown active")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrPlanRejected    = errors.New("position plan rejected")

	// Data errors
	ErrInsufficientHistory = errors.New("insufficient price history")
	ErrInvalidPrice        = errors.New("invalid price value")

	// State errors
	ErrStateNotFound = errors.New("state not found")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// GatewayError wraps a brokerage transport failure. Transient failures
// (timeouts, rate limits, 5xx) may be retried on a later cycle; permanent
// ones (authentication) stop the scheduling loop.
type GatewayError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *GatewayError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("gateway %s (%s): %v", e.Op, kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewTransientGatewayError wraps a retryable gateway failure.
func NewTransientGatewayError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Transient: true, Err: err}
}

// NewPermanentGatewayError wraps a non-retryable gateway failure.
func NewPermanentGatewayError(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Transient: false, Err: err}
}

// IsTransientGatewayError reports whether err is a retryable gateway failure.
func IsTransientGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Transient
}

// RejectedOrderError is returned when the broker refuses an order
// (margin or validation failure). Surfaced to the operator, not retried
// within the same cycle.
type RejectedOrderError struct {
	Instrument string
	Reason     string
}

func (e *RejectedOrderError) Error() string {
	return fmt.Sprintf("order rejected for %s: %s", e.Instrument, e.Reason)
}

// StateCorruptionError is returned when the persisted state fails to load
// or fails invariant reconciliation. The engine halts new trading but
// keeps serving read-only status.
type StateCorruptionError struct {
	Path string
	Err  error
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("state file %s corrupted: %v", e.Path, e.Err)
}

func (e *StateCorruptionError) Unwrap() error { return e.Err }
