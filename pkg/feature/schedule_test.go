package feature_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

func scheduled(id string, enabled bool, entries ...feature.ScheduleRule) feature.ForceRule {
	r := force(id, enabled)
	r.ScheduleRules = entries
	return r
}

func TestNextScheduledUpdate(t *testing.T) {
	t.Parallel()

	now := *at(10)
	settings := map[string]feature.EnvironmentSettings{
		"production": {Rules: feature.Rules{
			scheduled("a", false, feature.ScheduleRule{Timestamp: at(8), Enabled: true}, feature.ScheduleRule{Timestamp: at(14), Enabled: false}),
		}},
		"staging": {Rules: feature.Rules{
			scheduled("b", false, feature.ScheduleRule{Timestamp: at(12), Enabled: true}),
		}},
		"orphan": {Rules: feature.Rules{
			scheduled("c", false, feature.ScheduleRule{Timestamp: at(11), Enabled: true}),
		}},
	}

	next := feature.NextScheduledUpdate(settings, envIDs(), now)
	require.NotNil(t, next)
	assert.True(t, next.Equal(*at(12)), "ignores past entries and unknown environments")

	assert.Nil(t, feature.NextScheduledUpdate(settings, envIDs(), *at(15)))

	// A timestamp equal to now is not in the future.
	assert.True(t, feature.NextScheduledUpdate(settings, envIDs(), *at(12)).Equal(*at(14)))
}

func TestScheduledState(t *testing.T) {
	t.Parallel()

	r := scheduled("a", false,
		feature.ScheduleRule{Timestamp: at(8), Enabled: true},
		feature.ScheduleRule{Timestamp: at(14), Enabled: false},
	)

	_, ok := feature.ScheduledState(r, *at(7))
	assert.False(t, ok)

	enabled, ok := feature.ScheduledState(r, *at(8))
	assert.True(t, ok)
	assert.True(t, enabled)

	enabled, ok = feature.ScheduledState(r, *at(20))
	assert.True(t, ok)
	assert.False(t, enabled)

	immediate := scheduled("b", false, feature.ScheduleRule{Enabled: true})
	enabled, ok = feature.ScheduledState(immediate, *at(1))
	assert.True(t, ok)
	assert.True(t, enabled)
}

func TestApplySchedules(t *testing.T) {
	t.Parallel()

	settings := map[string]feature.EnvironmentSettings{
		"production": {Enabled: true, Rules: feature.Rules{
			scheduled("a", false, feature.ScheduleRule{Timestamp: at(8), Enabled: true}),
			force("plain", false),
		}},
	}

	out, changed := feature.ApplySchedules(settings, *at(9))
	require.True(t, changed)
	assert.True(t, out["production"].Rules[0].Common().Enabled)
	assert.False(t, out["production"].Rules[1].Common().Enabled)
	assert.False(t, settings["production"].Rules[0].Common().Enabled, "input untouched")

	_, changed = feature.ApplySchedules(out, *at(9))
	assert.False(t, changed)
}

func TestIsDue(t *testing.T) {
	t.Parallel()

	f := newFeature()
	assert.False(t, feature.IsDue(f, *at(10)))

	f.NextScheduledUpdate = at(10)
	assert.False(t, feature.IsDue(f, *at(10)), "equal timestamp is excluded")
	assert.True(t, feature.IsDue(f, *at(11)))
}
