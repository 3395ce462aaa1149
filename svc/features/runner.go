package features

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/notify"
)

// EffectsDispatcher runs the side effects of committed mutations.
type EffectsDispatcher interface {
	Dispatch(ctx context.Context, effects notify.Effects)
}

// Runner periodically applies due schedule entries and dispatches the resulting effects.
type Runner struct {
	service    *Service
	dispatcher EffectsDispatcher
	interval   time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithInterval sets how often due features are scanned. Default is one minute.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRunnerLogger sets the logger for the Runner.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner creates a scheduled-update runner.
func NewRunner(service *Service, dispatcher EffectsDispatcher, opts ...RunnerOption) *Runner {
	r := &Runner{
		service:    service,
		dispatcher: dispatcher,
		interval:   time.Minute,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("scheduled-updates"))
	return r
}

// Start scans immediately and then on every tick until ctx is canceled.
func (r *Runner) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduled update runner shutting down")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Run returns a function suitable for errgroup.
func (r *Runner) Run(ctx context.Context) func() error {
	return func() error {
		return r.Start(ctx)
	}
}

// Tick processes one batch. Failures are logged; effects of the features that were
// written are dispatched regardless.
func (r *Runner) Tick(ctx context.Context) {
	eff, err := r.service.ProcessScheduledUpdates(ctx, r.now().UTC())
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.LogAttrs(ctx, slog.LevelError, "scheduled update batch finished with errors", logger.Error(err))
	}
	if r.dispatcher != nil {
		r.dispatcher.Dispatch(ctx, eff)
	}
}
