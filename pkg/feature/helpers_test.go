package feature_test

import (
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/organization"
)

var testEnvs = []organization.Environment{
	{ID: "production"},
	{ID: "staging", Parent: "production"},
	{ID: "dev", DefaultState: true},
}

func envIDs() []string {
	ids := make([]string, 0, len(testEnvs))
	for _, env := range testEnvs {
		ids = append(ids, env.ID)
	}
	return ids
}

func at(hour int) *time.Time {
	t := time.Date(2026, 1, 1, hour, 0, 0, 0, time.UTC)
	return &t
}

func force(id string, enabled bool) feature.ForceRule {
	return feature.ForceRule{RuleBase: feature.RuleBase{ID: id, Enabled: enabled}, Value: "true"}
}

func expRef(id, experimentID string) feature.ExperimentRefRule {
	return feature.ExperimentRefRule{
		RuleBase:     feature.RuleBase{ID: id, Enabled: true},
		ExperimentID: experimentID,
	}
}

func newFeature() *feature.Feature {
	return &feature.Feature{
		ID:           "checkout-v2",
		Organization: "org_1",
		ValueType:    feature.ValueTypeBoolean,
		DefaultValue: "false",
		Version:      1,
		EnvironmentSettings: map[string]feature.EnvironmentSettings{
			"production": {Enabled: true, Rules: feature.Rules{force("r1", true)}},
			"staging":    {Enabled: false, Rules: feature.Rules{}},
		},
	}
}
