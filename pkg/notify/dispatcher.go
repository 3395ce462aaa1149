package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/logger"
)

// ChangeNotifier handles one committed change. *Notifier implements it.
type ChangeNotifier interface {
	Notify(ctx context.Context, c Change) error
}

// Dispatcher runs effects on background goroutines. Failures are logged and
// never reach the code that committed the mutation.
type Dispatcher struct {
	notifier ChangeNotifier
	syncer   Syncer
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSyncer sets the syncer used for Effects.Syncs. Without one syncs are dropped.
func WithSyncer(s Syncer) DispatcherOption {
	return func(d *Dispatcher) {
		d.syncer = s
	}
}

// WithEffectTimeout bounds each notification or sync. Default is 30 seconds.
func WithEffectTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher around notifier.
func NewDispatcher(notifier ChangeNotifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   slog.Default(),
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts every effect and returns immediately. ctx values are kept but
// its cancellation is not: effects outlive the request that produced them.
func (d *Dispatcher) Dispatch(ctx context.Context, effects Effects) {
	if effects.IsEmpty() {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for _, c := range effects.Changes {
		if d.notifier == nil {
			break
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := d.notifier.Notify(ctx, c); err != nil {
				d.logger.LogAttrs(ctx, slog.LevelError, "feature change notification failed",
					logger.Action(string(c.Action)),
					logger.Organization(c.Organization),
					logger.FeatureID(c.FeatureID),
					logger.Error(err),
				)
			}
		}()
	}

	for _, s := range effects.Syncs {
		if d.syncer == nil {
			break
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := d.syncer.Sync(ctx, s); err != nil {
				attrs := []slog.Attr{
					logger.Action(string(s.Action)),
					logger.Organization(s.Organization),
					logger.Error(err),
				}
				if s.Feature != nil {
					attrs = append(attrs, logger.FeatureID(s.Feature.ID))
				}
				d.logger.LogAttrs(ctx, slog.LevelWarn, "experiment sync failed", attrs...)
			}
		}()
	}
}

// Wait blocks until every dispatched effect has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
