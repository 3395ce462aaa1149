package features_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/revision"
	"github.com/dmitrymomot/flagkit/pkg/saferollout"
	"github.com/dmitrymomot/flagkit/svc/features"
)

// scheduled returns a feature whose staging rule was due to switch on an hour ago and
// switches off again in three hours.
func scheduled(id string) *feature.Feature {
	f := liveFeature()
	f.ID = id
	rule := force("r1", "true")
	rule.Enabled = false
	rule.ScheduleRules = []feature.ScheduleRule{
		{Timestamp: hoursFromNow(-1), Enabled: true},
		{Timestamp: hoursFromNow(3), Enabled: false},
	}
	f.EnvironmentSettings["staging"] = feature.EnvironmentSettings{Enabled: true, Rules: feature.Rules{rule}}
	f.NextScheduledUpdate = hoursFromNow(-1)
	return f
}

func TestFindDueFeatures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	due := scheduled("due")
	boundary := scheduled("boundary")
	boundary.NextScheduledUpdate = &now
	idle := liveFeature()
	fx := newFixture(t, []*feature.Feature{due, boundary, idle})

	found, err := fx.svc.FindDueFeatures(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "due", found[0].ID)
}

func TestProcessScheduledUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("applies elapsed entries and advances", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, []*feature.Feature{scheduled("a"), scheduled("b"), liveFeature()})

		eff, err := fx.svc.ProcessScheduledUpdates(ctx, now)
		require.NoError(t, err)
		require.Len(t, eff.Changes, 2)
		for _, c := range eff.Changes {
			assert.Equal(t, notify.ActionScheduledUpdate, c.Action)
			assert.Equal(t, features.SystemActor.ID, c.Actor)
			assert.Equal(t,
				[]notify.Partition{{Organization: "org_1", Environment: "staging", Project: "web"}},
				notify.AffectedPartitions(c),
			)
		}

		got := fx.stored(t, "a")
		assert.True(t, got.EnvironmentSettings["staging"].Rules[0].Common().Enabled)
		require.NotNil(t, got.NextScheduledUpdate)
		assert.Equal(t, *hoursFromNow(3), *got.NextScheduledUpdate)
		assert.Equal(t, 1, got.Version)

		again, err := fx.svc.ProcessScheduledUpdates(ctx, now)
		require.NoError(t, err)
		assert.True(t, again.IsEmpty())
	})

	t.Run("last entry clears the schedule", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, []*feature.Feature{scheduled("a")})
		later := now.Add(4 * time.Hour)

		_, err := fx.svc.ProcessScheduledUpdates(ctx, later)
		require.NoError(t, err)

		got := fx.stored(t, "a")
		assert.False(t, got.EnvironmentSettings["staging"].Rules[0].Common().Enabled)
		assert.Nil(t, got.NextScheduledUpdate)
	})

	t.Run("one failing feature does not block the rest", func(t *testing.T) {
		t.Parallel()
		orphan := scheduled("orphan")
		orphan.Organization = "org_gone"
		fx := newFixture(t, []*feature.Feature{scheduled("a"), orphan})

		eff, err := fx.svc.ProcessScheduledUpdates(ctx, now)
		require.ErrorIs(t, err, organization.ErrNotFound)
		require.Len(t, eff.Changes, 1)
		assert.Equal(t, "a", eff.Changes[0].FeatureID)
		assert.True(t, fx.stored(t, "a").EnvironmentSettings["staging"].Rules[0].Common().Enabled)
		stuck, err := fx.features.Get(ctx, "org_gone", "orphan")
		require.NoError(t, err)
		assert.NotNil(t, stuck.NextScheduledUpdate)
	})

	t.Run("requires an organization provider", func(t *testing.T) {
		t.Parallel()
		mem, err := feature.NewMemoryStore(scheduled("a"))
		require.NoError(t, err)
		svc := features.New(mem, revision.NewMemoryStore(), saferollout.NewMemoryStore(), features.WithLogger(silent))

		_, err = svc.ProcessScheduledUpdates(ctx, now)
		require.ErrorIs(t, err, features.ErrNoOrganizations)
	})

	t.Run("safe rollout records are left alone", func(t *testing.T) {
		t.Parallel()
		f := scheduled("checkout")
		f.EnvironmentSettings["production"] = feature.EnvironmentSettings{
			Enabled: true,
			Rules:   feature.Rules{safeRollout("r2", "sr_1", feature.SafeRolloutRunning)},
		}
		fx := newFixture(t, []*feature.Feature{f})
		fx.addRollout(t, "sr_1", "production", feature.SafeRolloutStopped, nil)

		eff, err := fx.svc.ProcessScheduledUpdates(ctx, now)
		require.NoError(t, err)
		require.Len(t, eff.Changes, 1)
		assert.True(t, fx.stored(t, "checkout").EnvironmentSettings["staging"].Rules[0].Common().Enabled)

		got := fx.rollout(t, "sr_1")
		assert.Equal(t, feature.SafeRolloutStopped, got.Status)
		assert.Nil(t, got.StartedAt)
	})
}
