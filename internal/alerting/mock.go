package alerting

import (
	"context"
	"strings"
	"sync"
)

// RecordedAlert is a single alert captured by the mock.
type RecordedAlert struct {
	Severity Severity
	Message  string
	Fields   []any
}

// MockAlerter records alerts for tests.
type MockAlerter struct {
	mu     sync.Mutex
	alerts []RecordedAlert

	// Err, when set, is returned from Alert.
	Err error
}

// NewMockAlerter creates a new mock alerter.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

// Name returns the name of the alerter.
func (m *MockAlerter) Name() string {
	return "mock"
}

// Alert records the alert.
func (m *MockAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, RecordedAlert{Severity: severity, Message: message, Fields: fields})
	return m.Err
}

// Alerts returns a copy of all recorded alerts.
func (m *MockAlerter) Alerts() []RecordedAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// HasAlertWithSeverity reports whether any alert with the severity was recorded.
func (m *MockAlerter) HasAlertWithSeverity(severity Severity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.Severity == severity {
			return true
		}
	}
	return false
}

// HasAlertContaining reports whether any alert message contains the substring.
func (m *MockAlerter) HasAlertContaining(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if strings.Contains(a.Message, substr) {
			return true
		}
	}
	return false
}
