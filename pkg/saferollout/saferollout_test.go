package saferollout_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/saferollout"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rollout(id string, status feature.SafeRolloutStatus) *saferollout.SafeRollout {
	return &saferollout.SafeRollout{
		ID:           id,
		Organization: "org_1",
		FeatureID:    "checkout-v2",
		Environment:  "production",
		Status:       status,
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get by ids skips missing and other orgs", func(t *testing.T) {
		t.Parallel()
		other := rollout("sr_2", feature.SafeRolloutRunning)
		other.Organization = "org_2"
		s := saferollout.NewMemoryStore(rollout("sr_1", feature.SafeRolloutRunning), other, rollout("sr_3", feature.SafeRolloutReleased))

		got, err := s.GetByIDs(ctx, "org_1", []string{"sr_3", "sr_2", "sr_1", "sr_1", "missing"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "sr_1", got[0].ID)
		assert.Equal(t, "sr_3", got[1].ID)
	})

	t.Run("create and update", func(t *testing.T) {
		t.Parallel()
		s := saferollout.NewMemoryStore()
		require.NoError(t, s.Create(ctx, rollout("sr_1", feature.SafeRolloutRunning)))
		require.ErrorIs(t, s.Create(ctx, rollout("sr_1", feature.SafeRolloutRunning)), saferollout.ErrExists)
		require.ErrorIs(t, s.Create(ctx, &saferollout.SafeRollout{}), saferollout.ErrInvalidRollout)

		require.NoError(t, s.Update(ctx, rollout("sr_1", feature.SafeRolloutStopped)))
		got, err := s.GetByIDs(ctx, "org_1", []string{"sr_1"})
		require.NoError(t, err)
		assert.Equal(t, feature.SafeRolloutStopped, got[0].Status)

		require.ErrorIs(t, s.Update(ctx, rollout("nope", feature.SafeRolloutStopped)), saferollout.ErrNotFound)
	})
}

func TestIntervalScheduler(t *testing.T) {
	t.Parallel()

	cfg := organization.RampUpConfig{
		SnapshotInterval: time.Hour,
		StepInterval:     30 * time.Minute,
		Steps:            []float64{10, 50, 100},
	}

	sr := rollout("sr_1", feature.SafeRolloutRunning)
	sr.RampUpSchedule.Enabled = true
	assert.True(t, sr.NeedsStart())

	out, err := saferollout.IntervalScheduler{}.Schedule(context.Background(), sr, cfg, now)
	require.NoError(t, err)
	require.NotNil(t, out.NextSnapshotAttempt)
	assert.True(t, out.NextSnapshotAttempt.Equal(now.Add(time.Hour)))
	require.NotNil(t, out.RampUpSchedule.NextUpdate)
	assert.True(t, out.RampUpSchedule.NextUpdate.Equal(now.Add(30*time.Minute)))
	assert.Equal(t, []saferollout.RampUpStep{{Percent: 10}, {Percent: 50}, {Percent: 100}}, out.RampUpSchedule.Steps)
	assert.Nil(t, sr.NextSnapshotAttempt, "input untouched")

	plain := rollout("sr_2", feature.SafeRolloutRunning)
	out, err = saferollout.IntervalScheduler{}.Schedule(context.Background(), plain, cfg, now)
	require.NoError(t, err)
	assert.Nil(t, out.RampUpSchedule.NextUpdate)
	assert.Empty(t, out.RampUpSchedule.Steps)
}
