package features_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

func TestLegacyDraftMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	withLegacy := func(active bool) *feature.Feature {
		f := liveFeature()
		f.LegacyDraft = &feature.LegacyDraft{
			Active:       active,
			DefaultValue: feature.Ptr("true"),
			Comment:      "old draft",
			Rules: map[string]feature.Rules{
				"staging": {force("r1", "true")},
				"qa":      {force("r2", "true")},
			},
		}
		return f
	}

	t.Run("get migrates once", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, []*feature.Feature{withLegacy(true)})

		out, err := fx.svc.Get(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		assert.True(t, out.Feature.LegacyDraftMigrated)
		assert.True(t, out.Feature.HasDrafts)
		require.Len(t, out.Effects.Changes, 1)

		rev := fx.revision(t, "checkout", 2)
		assert.Equal(t, revision.StatusDraft, rev.Status)
		assert.Equal(t, "true", rev.DefaultValue)
		assert.Equal(t, "old draft", rev.Comment)
		assert.Len(t, rev.Rules["staging"], 1)
		assert.NotContains(t, rev.Rules, "qa")

		again, err := fx.svc.Get(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		assert.True(t, again.Effects.IsEmpty())
		revs, err := fx.revisions.List(ctx, "org_1", "checkout")
		require.NoError(t, err)
		assert.Len(t, revs, 1)
	})

	t.Run("inactive draft is only marked migrated", func(t *testing.T) {
		t.Parallel()
		fx := newFixture(t, []*feature.Feature{withLegacy(false)})

		out, err := fx.svc.MigrateLegacyDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		assert.Nil(t, out.Revision)
		assert.True(t, fx.stored(t, "checkout").LegacyDraftMigrated)
		assert.False(t, fx.stored(t, "checkout").HasDrafts)

		again, err := fx.svc.MigrateLegacyDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		assert.True(t, again.Effects.IsEmpty())
		assert.EqualValues(t, 1, fx.features.updates.Load())
	})

	t.Run("draft matching live creates no revision", func(t *testing.T) {
		t.Parallel()
		f := liveFeature()
		f.LegacyDraft = &feature.LegacyDraft{Active: true, DefaultValue: feature.Ptr(f.DefaultValue)}
		fx := newFixture(t, []*feature.Feature{f})

		out, err := fx.svc.MigrateLegacyDraft(ctx, fx.scope, "checkout")
		require.NoError(t, err)
		assert.Nil(t, out.Revision)
		assert.True(t, out.Feature.LegacyDraftMigrated)
	})
}
