package features_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/revision"
	"github.com/dmitrymomot/flagkit/pkg/saferollout"
	"github.com/dmitrymomot/flagkit/svc/features"
)

var (
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	author = revision.Actor{ID: "u_author", Name: "Ada"}
	silent = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// countingStore counts feature writes and can be made to fail them.
type countingStore struct {
	*feature.MemoryStore
	updates   atomic.Int32
	updateErr error
}

func (s *countingStore) Update(ctx context.Context, next *feature.Feature, expected int) error {
	s.updates.Add(1)
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.Update(ctx, next, expected)
}

// markStore fails MarkPublished while markErr is set.
type markStore struct {
	*revision.MemoryStore
	markErr error
}

func (s *markStore) MarkPublished(ctx context.Context, org, featureID string, version int, by revision.Actor, comment string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	return s.MemoryStore.MarkPublished(ctx, org, featureID, version, by, comment, at)
}

type fixture struct {
	svc       *features.Service
	features  *countingStore
	revisions *markStore
	rollouts  *saferollout.MemoryStore
	scope     features.Scope
}

func testOrg() organization.Settings {
	return organization.Settings{
		ID: "org_1",
		Environments: []organization.Environment{
			{ID: "production"},
			{ID: "staging"},
		},
	}
}

func newFixture(t *testing.T, seed []*feature.Feature, opts ...features.Option) *fixture {
	t.Helper()

	mem, err := feature.NewMemoryStore(seed...)
	require.NoError(t, err)
	org := testOrg()
	orgs, err := organization.NewMemoryProvider(&org)
	require.NoError(t, err)

	fx := &fixture{
		features:  &countingStore{MemoryStore: mem},
		revisions: &markStore{MemoryStore: revision.NewMemoryStore()},
		rollouts:  saferollout.NewMemoryStore(),
		scope: features.Scope{
			Org:   org,
			Actor: author,
			Auth:  organization.AllowAll,
			Now:   func() time.Time { return now },
		},
	}
	opts = append([]features.Option{
		features.WithLogger(silent),
		features.WithOrganizations(orgs),
	}, opts...)
	fx.svc = features.New(fx.features, fx.revisions, fx.rollouts, opts...)
	return fx
}

func (fx *fixture) stored(t *testing.T, id string) *feature.Feature {
	t.Helper()
	f, err := fx.features.Get(context.Background(), "org_1", id)
	require.NoError(t, err)
	return f
}

func (fx *fixture) revision(t *testing.T, id string, version int) *revision.Revision {
	t.Helper()
	rev, err := fx.revisions.Get(context.Background(), "org_1", id, version)
	require.NoError(t, err)
	return rev
}

// addDraft stores a draft of the feature's current state with the given version.
func (fx *fixture) addDraft(t *testing.T, f *feature.Feature, version int) *revision.Revision {
	t.Helper()
	rev := revision.NewDraft(f, version, author, now)
	require.NoError(t, fx.revisions.Create(context.Background(), rev))
	return rev
}

func liveFeature() *feature.Feature {
	return &feature.Feature{
		ID:           "checkout",
		Organization: "org_1",
		Project:      "web",
		Version:      1,
		ValueType:    feature.ValueTypeBoolean,
		DefaultValue: "false",
		EnvironmentSettings: map[string]feature.EnvironmentSettings{
			"production": {Enabled: true, Rules: feature.Rules{}},
			"staging":    {Enabled: false, Rules: feature.Rules{}},
		},
	}
}

func force(id, value string) feature.ForceRule {
	return feature.ForceRule{RuleBase: feature.RuleBase{ID: id, Enabled: true}, Value: value}
}

func safeRollout(ruleID, rolloutID string, status feature.SafeRolloutStatus) feature.SafeRolloutRule {
	return feature.SafeRolloutRule{
		RuleBase:       feature.RuleBase{ID: ruleID, Enabled: true},
		SafeRolloutID:  rolloutID,
		Status:         status,
		ControlValue:   "false",
		VariationValue: "true",
	}
}

func hoursFromNow(h int) *time.Time {
	t := now.Add(time.Duration(h) * time.Hour)
	return &t
}

func (fx *fixture) addRollout(t *testing.T, id, env string, status feature.SafeRolloutStatus, startedAt *time.Time) {
	t.Helper()
	require.NoError(t, fx.rollouts.Create(context.Background(), &saferollout.SafeRollout{
		ID: id, Organization: "org_1", FeatureID: "checkout", Environment: env,
		Status: status, StartedAt: startedAt,
	}))
}

func (fx *fixture) rollout(t *testing.T, id string) *saferollout.SafeRollout {
	t.Helper()
	got, err := fx.rollouts.GetByIDs(context.Background(), "org_1", []string{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	return got[0]
}
