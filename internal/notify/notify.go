// Package notify delivers alert messages to people: Slack, email and MQTT.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/internal/metrics"
)

// EmailSubject is the subject line of alert emails
const EmailSubject = "People Monitoring Alert"

// Notifier sends a message over one channel
type Notifier interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Fanout sends every message to all notifiers in parallel, each bounded by
// its own timeout. Failures are logged and counted.
type Fanout struct {
	notifiers []Notifier
	timeout   time.Duration
	metrics   *metrics.Metrics
}

// NewFanout creates a fanout. m may be nil.
func NewFanout(timeout time.Duration, m *metrics.Metrics, notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		timeout:   timeout,
		metrics:   m,
	}
}

// Name implements Notifier
func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of configured channels
func (f *Fanout) Len() int { return len(f.notifiers) }

// Send delivers message on every channel and waits for all of them. The
// returned error joins the individual failures.
func (f *Fanout) Send(ctx context.Context, message string) error {
	if len(f.notifiers) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, n := range f.notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()

			callCtx := ctx
			if f.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}

			if err := n.Send(callCtx, message); err != nil {
				logger.Error("Notify", "Failed to send %s alert: %v", n.Name(), err)
				if f.metrics != nil {
					f.metrics.NotifyErrors.Add(1)
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
				mu.Unlock()
				return
			}

			logger.Info("Notify", "%s alert sent successfully", n.Name())
			if f.metrics != nil {
				f.metrics.NotifySent.Add(1)
			}
		}(n)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close releases notifiers that hold connections
func (f *Fanout) Close() error {
	var errs []error
	for _, n := range f.notifiers {
		if c, ok := n.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
