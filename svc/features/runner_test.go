package features_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/svc/features"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	changes []notify.Change
}

func (d *recordingDispatcher) Dispatch(_ context.Context, eff notify.Effects) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changes = append(d.changes, eff.Changes...)
}

func (d *recordingDispatcher) recorded() []notify.Change {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notify.Change(nil), d.changes...)
}

func TestRunner(t *testing.T) {
	t.Parallel()

	t.Run("tick dispatches effects", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, []*feature.Feature{scheduled("a")})
		d := &recordingDispatcher{}
		r := features.NewRunner(fx.svc, d,
			features.WithClock(func() time.Time { return now }),
			features.WithRunnerLogger(silent),
		)

		r.Tick(context.Background())
		require.Len(t, d.recorded(), 1)
		assert.Equal(t, notify.ActionScheduledUpdate, d.recorded()[0].Action)
	})

	t.Run("run scans immediately and stops with context", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, []*feature.Feature{scheduled("a")})
		d := &recordingDispatcher{}
		r := features.NewRunner(fx.svc, d,
			features.WithClock(func() time.Time { return now }),
			features.WithInterval(time.Hour),
			features.WithRunnerLogger(silent),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- r.Run(ctx)() }()

		require.Eventually(t, func() bool { return len(d.recorded()) == 1 }, time.Second, 10*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("runner did not stop")
		}
	})
}
