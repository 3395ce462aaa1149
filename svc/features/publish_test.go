package features_test

import (
	"context"
	"errors"
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

func rulesResult(env string, rules ...feature.Rule) revision.Result {
	return revision.Result{Rules: map[string]feature.Rules{env: rules}}
}

func TestPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("replaces only environments in the result", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)
		ruleA := force("ruleA", "true")

		out, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", ruleA), "ship")
		require.NoError(t, err)

		got := fx.stored(t, "checkout")
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, feature.Rules{ruleA}, got.EnvironmentSettings["production"].Rules)
		assert.True(t, got.EnvironmentSettings["production"].Enabled)
		assert.Equal(t, f.EnvironmentSettings["staging"], got.EnvironmentSettings["staging"])
		assert.Equal(t, f.DefaultValue, got.DefaultValue)
		assert.False(t, got.HasDrafts)

		published := fx.revision(t, "checkout", 2)
		assert.Equal(t, revision.StatusPublished, published.Status)
		assert.Equal(t, "ship", published.Comment)
		require.NotNil(t, published.PublishedBy)
		assert.Equal(t, author.ID, published.PublishedBy.ID)

		require.Len(t, out.Effects.Changes, 1)
		c := out.Effects.Changes[0]
		assert.Equal(t, notify.ActionPublished, c.Action)
		assert.Equal(t,
			[]notify.Partition{{Organization: "org_1", Environment: "production", Project: "web"}},
			notify.AffectedPartitions(c),
		)
	})

	t.Run("new environment starts disabled", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		delete(f.EnvironmentSettings, "staging")
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("staging", force("r1", "true")), "")
		require.NoError(t, err)

		staging := fx.stored(t, "checkout").EnvironmentSettings["staging"]
		assert.False(t, staging.Enabled)
		assert.Len(t, staging.Rules, 1)
	})

	t.Run("default value only", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		out, err := fx.svc.Publish(ctx, fx.scope, f, rev, revision.Result{DefaultValue: feature.Ptr("true")}, "")
		require.NoError(t, err)
		assert.Equal(t, "true", out.Feature.DefaultValue)
		assert.Equal(t, f.EnvironmentSettings, fx.stored(t, "checkout").EnvironmentSettings)
		assert.Len(t, notify.AffectedPartitions(out.Effects.Changes[0]), 2)
	})

	t.Run("closed revisions are rejected before any write", func(t *testing.T) {
		t.Parallel()
		for _, status := range []revision.Status{revision.StatusPublished, revision.StatusDiscarded} {
			f := liveFeature()
			fx := newFixture(t, []*feature.Feature{f})
			rev := &revision.Revision{Organization: "org_1", FeatureID: "checkout", Version: 2, Status: status}

			_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", force("r1", "true")), "")
			require.ErrorIs(t, err, revision.ErrInvalidRevisionState, status)
			assert.Zero(t, fx.features.updates.Load())
		}
	})

	t.Run("empty result is rejected", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, revision.Result{}, "")
		require.ErrorIs(t, err, revision.ErrNoChanges)
		assert.Zero(t, fx.features.updates.Load())
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", 2).Status)
	})

	t.Run("result for unknown environment only is empty", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("qa", force("r1", "true")), "")
		require.ErrorIs(t, err, revision.ErrNoChanges)
	})

	t.Run("revision older than live is stale", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.Version = 3
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, liveFeature(), 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", force("r1", "true")), "")
		require.ErrorIs(t, err, revision.ErrStaleRevision)
		assert.Zero(t, fx.features.updates.Load())
	})

	t.Run("revision at live version with empty result has no changes", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.Version = 2
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, revision.Result{}, "")
		require.ErrorIs(t, err, revision.ErrNoChanges)
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", 2).Status)
	})

	t.Run("revision at live version is stale", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.Version = 2
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", force("r1", "true")), "")
		require.ErrorIs(t, err, revision.ErrStaleRevision)
		assert.Zero(t, fx.features.updates.Load())
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", 2).Status)
	})

	t.Run("stale snapshot fails with version conflict", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev2 := fx.addDraft(t, f, 2)
		rev3 := fx.addDraft(t, f, 3)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev2, rulesResult("production", force("r1", "true")), "")
		require.NoError(t, err)

		_, err = fx.svc.Publish(ctx, fx.scope, f, rev3, rulesResult("staging", force("r2", "true")), "")
		require.ErrorIs(t, err, feature.ErrVersionConflict)
		assert.Equal(t, 2, fx.stored(t, "checkout").Version)
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", rev3.Version).Status)
	})

	t.Run("other active drafts keep HasDrafts", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.HasDrafts = true
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)
		fx.addDraft(t, f, 3)

		out, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", force("r1", "true")), "")
		require.NoError(t, err)
		assert.True(t, out.Feature.HasDrafts)
	})

	t.Run("next scheduled update follows the new rules", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)

		rule := force("r1", "true")
		rule.ScheduleRules = []feature.ScheduleRule{
			{Timestamp: hoursFromNow(-1), Enabled: true},
			{Timestamp: hoursFromNow(6), Enabled: false},
		}
		out, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", rule), "")
		require.NoError(t, err)
		require.NotNil(t, out.Feature.NextScheduledUpdate)
		assert.Equal(t, *hoursFromNow(6), *out.Feature.NextScheduledUpdate)
	})

	t.Run("forbidden project", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev := fx.addDraft(t, f, 2)
		sc := fx.scope
		sc.Auth = organization.ProjectAuthorizer("mobile")

		_, err := fx.svc.Publish(ctx, sc, f, rev, rulesResult("production", force("r1", "true")), "")
		require.ErrorIs(t, err, organization.ErrForbidden)
	})
}

func TestPublishInterrupted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("publishing the draft again completes the mark", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		rev, err := revision.NewDraft(f, 2, author, now).AddRule(ctx, "production", force("r1", "true"), author, now)
		require.NoError(t, err)
		require.NoError(t, fx.revisions.Create(ctx, rev))
		fx.revisions.markErr = errors.New("connection reset")

		out, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production", force("r1", "true")), "")
		require.ErrorIs(t, err, features.ErrPartialPublish)
		require.NotNil(t, out.Feature)
		assert.Len(t, out.Effects.Changes, 1)
		assert.Equal(t, 2, fx.stored(t, "checkout").Version)
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", 2).Status)

		fx.revisions.markErr = nil
		writes := fx.features.updates.Load()

		done, err := fx.svc.PublishDraft(ctx, fx.scope, "checkout", 2, "")
		require.NoError(t, err)
		assert.Equal(t, writes, fx.features.updates.Load())
		assert.Equal(t, revision.StatusPublished, done.Revision.Status)
		assert.Equal(t, revision.StatusPublished, fx.revision(t, "checkout", 2).Status)

		require.Len(t, done.Effects.Changes, 1)
		c := done.Effects.Changes[0]
		assert.Nil(t, c.Previous)
		assert.Len(t, notify.AffectedPartitions(c), 2)
	})

	t.Run("draft at live version whose changes are not live is stale", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.Version = 2
		fx := newFixture(t, []*feature.Feature{f})
		rev, err := revision.NewDraft(liveFeature(), 2, author, now).AddRule(ctx, "production", force("r1", "true"), author, now)
		require.NoError(t, err)
		require.NoError(t, fx.revisions.Create(ctx, rev))

		_, err = fx.svc.PublishDraft(ctx, fx.scope, "checkout", 2, "")
		require.ErrorIs(t, err, revision.ErrStaleRevision)
		assert.Zero(t, fx.features.updates.Load())
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", 2).Status)
	})
}

func TestPublishSafeRollouts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	started := now.Add(-48 * time.Hour)

	t.Run("removed rollout is stopped", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.EnvironmentSettings["production"] = feature.EnvironmentSettings{
			Enabled: true,
			Rules:   feature.Rules{safeRollout("r1", "sr_1", feature.SafeRolloutRunning)},
		}
		fx := newFixture(t, []*feature.Feature{f})
		require.NoError(t, fx.rollouts.Create(ctx, &saferollout.SafeRollout{
			ID: "sr_1", Organization: "org_1", FeatureID: "checkout", Environment: "production",
			Status: feature.SafeRolloutRunning, StartedAt: &started,
		}))
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("production"), "")
		require.NoError(t, err)

		got, err := fx.rollouts.GetByIDs(ctx, "org_1", []string{"sr_1"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, feature.SafeRolloutStopped, got[0].Status)
	})

	t.Run("failed feature write restores rollouts", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.EnvironmentSettings["production"] = feature.EnvironmentSettings{
			Enabled: true,
			Rules:   feature.Rules{safeRollout("r1", "sr_1", feature.SafeRolloutRunning)},
		}
		fx := newFixture(t, []*feature.Feature{f})
		fx.addRollout(t, "sr_1", "production", feature.SafeRolloutRunning, &started)
		fx.addRollout(t, "sr_2", "staging", feature.SafeRolloutRunning, nil)
		rev := fx.addDraft(t, f, 2)
		fx.features.updateErr = feature.ErrVersionConflict

		result := revision.Result{Rules: map[string]feature.Rules{
			"production": {},
			"staging":    {safeRollout("r2", "sr_2", feature.SafeRolloutRunning)},
		}}
		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, result, "")
		require.ErrorIs(t, err, feature.ErrVersionConflict)

		stopped := fx.rollout(t, "sr_1")
		assert.Equal(t, feature.SafeRolloutRunning, stopped.Status)
		require.NotNil(t, stopped.StartedAt)
		assert.Equal(t, started, *stopped.StartedAt)

		unstarted := fx.rollout(t, "sr_2")
		assert.Equal(t, feature.SafeRolloutRunning, unstarted.Status)
		assert.Nil(t, unstarted.StartedAt)
		assert.Nil(t, unstarted.NextSnapshotAttempt)
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", 2).Status)
	})

	t.Run("new running rollout is started and scheduled", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		fx := newFixture(t, []*feature.Feature{f})
		require.NoError(t, fx.rollouts.Create(ctx, &saferollout.SafeRollout{
			ID: "sr_2", Organization: "org_1", FeatureID: "checkout", Environment: "staging",
			Status: feature.SafeRolloutRunning,
		}))
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("staging", safeRollout("r1", "sr_2", feature.SafeRolloutRunning)), "")
		require.NoError(t, err)

		got, err := fx.rollouts.GetByIDs(ctx, "org_1", []string{"sr_2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NotNil(t, got[0].StartedAt)
		assert.Equal(t, now, *got[0].StartedAt)
		require.NotNil(t, got[0].NextSnapshotAttempt)
		assert.Equal(t, now.Add(organization.DefaultRampUp.SnapshotInterval), *got[0].NextSnapshotAttempt)
	})

	t.Run("scheduling failure does not fail the publish", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		failing := saferollout.SchedulerFunc(func(context.Context, *saferollout.SafeRollout, organization.RampUpConfig, time.Time) (*saferollout.SafeRollout, error) {
			return nil, errors.New("scheduler down")
		})
		fx := newFixture(t, []*feature.Feature{f}, features.WithScheduler(failing))
		require.NoError(t, fx.rollouts.Create(ctx, &saferollout.SafeRollout{
			ID: "sr_3", Organization: "org_1", FeatureID: "checkout", Environment: "staging",
			Status: feature.SafeRolloutRunning,
		}))
		rev := fx.addDraft(t, f, 2)

		_, err := fx.svc.Publish(ctx, fx.scope, f, rev, rulesResult("staging", safeRollout("r1", "sr_3", feature.SafeRolloutRunning)), "")
		require.NoError(t, err)

		got, err := fx.rollouts.GetByIDs(ctx, "org_1", []string{"sr_3"})
		require.NoError(t, err)
		require.NotNil(t, got[0].StartedAt)
		assert.Nil(t, got[0].NextSnapshotAttempt)
	})
}

func TestPublishDraft(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	create := func(t *testing.T) *fixture {
		t.Helper()
		fx := newFixture(t, nil)
		_, err := fx.svc.Create(ctx, fx.scope, liveFeature())
		require.NoError(t, err)
		return fx
	}
	setDefault := func(value string) features.EditFunc {
		return func(rev *revision.Revision) (*revision.Revision, error) {
			return rev.SetDefaultValue(ctx, value, author, now)
		}
	}
	addRule := func(env string, rule feature.Rule) features.EditFunc {
		return func(rev *revision.Revision) (*revision.Revision, error) {
			return rev.AddRule(ctx, env, rule, author, now)
		}
	}

	t.Run("edits are published", func(t *testing.T) {
		t.Parallel()
		fx := create(t)

		draft, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		_, err = fx.svc.EditDraft(ctx, fx.scope, "checkout", draft.Revision.Version, addRule("staging", force("r1", "true")))
		require.NoError(t, err)

		out, err := fx.svc.PublishDraft(ctx, fx.scope, "checkout", draft.Revision.Version, "done")
		require.NoError(t, err)
		assert.Equal(t, revision.StatusPublished, out.Revision.Status)
		assert.Equal(t, draft.Revision.Version, out.Feature.Version)
		assert.Len(t, out.Feature.EnvironmentSettings["staging"].Rules, 1)
		assert.False(t, out.Feature.HasDrafts)
	})

	t.Run("independent drafts merge", func(t *testing.T) {
		t.Parallel()
		fx := create(t)

		a, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		b, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		_, err = fx.svc.EditDraft(ctx, fx.scope, "checkout", a.Revision.Version, setDefault("true"))
		require.NoError(t, err)
		_, err = fx.svc.EditDraft(ctx, fx.scope, "checkout", b.Revision.Version, addRule("production", force("r1", "true")))
		require.NoError(t, err)

		_, err = fx.svc.PublishDraft(ctx, fx.scope, "checkout", a.Revision.Version, "")
		require.NoError(t, err)
		out, err := fx.svc.PublishDraft(ctx, fx.scope, "checkout", b.Revision.Version, "")
		require.NoError(t, err)

		assert.Equal(t, b.Revision.Version, out.Feature.Version)
		assert.Equal(t, "true", out.Feature.DefaultValue)
		assert.Len(t, out.Feature.EnvironmentSettings["production"].Rules, 1)
	})

	t.Run("conflicting drafts", func(t *testing.T) {
		t.Parallel()
		fx := create(t)

		a, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		b, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		_, err = fx.svc.EditDraft(ctx, fx.scope, "checkout", a.Revision.Version, setDefault("true"))
		require.NoError(t, err)
		_, err = fx.svc.EditDraft(ctx, fx.scope, "checkout", b.Revision.Version, setDefault("maybe"))
		require.NoError(t, err)

		_, err = fx.svc.PublishDraft(ctx, fx.scope, "checkout", a.Revision.Version, "")
		require.NoError(t, err)
		_, err = fx.svc.PublishDraft(ctx, fx.scope, "checkout", b.Revision.Version, "")
		require.ErrorIs(t, err, revision.ErrMergeConflict)
		assert.Equal(t, revision.StatusDraft, fx.revision(t, "checkout", b.Revision.Version).Status)
	})

	t.Run("unchanged draft has nothing to publish", func(t *testing.T) {
		t.Parallel()
		fx := create(t)

		draft, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)

		_, err = fx.svc.PublishDraft(ctx, fx.scope, "checkout", draft.Revision.Version, "")
		require.ErrorIs(t, err, revision.ErrNoChanges)
	})

	t.Run("discarded draft cannot be published", func(t *testing.T) {
		t.Parallel()
		fx := create(t)

		draft, err := fx.svc.CreateDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		_, err = fx.svc.Discard(ctx, fx.scope, "checkout", draft.Revision.Version, "")
		require.NoError(t, err)

		_, err = fx.svc.PublishDraft(ctx, fx.scope, "checkout", draft.Revision.Version, "")
		require.ErrorIs(t, err, revision.ErrInvalidRevisionState)
	})
}
