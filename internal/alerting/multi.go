package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MultiAlerter fans an alert out to multiple alerters in parallel.
type MultiAlerter struct {
	alerters []Alerter
}

// NewMultiAlerter creates a new multi-alerter.
func NewMultiAlerter(alerters ...Alerter) *MultiAlerter {
	return &MultiAlerter{alerters: alerters}
}

// Name returns the name of the alerter.
func (m *MultiAlerter) Name() string {
	return "multi"
}

// Alert sends the alert through all configured alerters. A failure in one
// alerter does not stop the others; all errors are joined.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, a := range m.alerters {
		wg.Add(1)
		go func(a Alerter) {
			defer wg.Done()
			if err := a.Alert(ctx, severity, message, fields...); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
				mu.Unlock()
			}
		}(a)
	}
	wg.Wait()

	return errors.Join(errs...)
}
