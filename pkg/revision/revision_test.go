package revision_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

var (
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	author = revision.Actor{ID: "u_author", Name: "Author"}
	review = revision.Actor{ID: "u_reviewer", Name: "Reviewer"}
)

func force(id, value string) feature.ForceRule {
	return feature.ForceRule{RuleBase: feature.RuleBase{ID: id, Enabled: true}, Value: value}
}

func liveFeature() *feature.Feature {
	return &feature.Feature{
		ID:           "checkout-v2",
		Organization: "org_1",
		ValueType:    feature.ValueTypeBoolean,
		DefaultValue: "false",
		Version:      3,
		EnvironmentSettings: map[string]feature.EnvironmentSettings{
			"production": {Enabled: true, Rules: feature.Rules{force("a", "true")}},
			"staging":    {Enabled: false, Rules: feature.Rules{}},
		},
	}
}

func TestNewDraft(t *testing.T) {
	t.Parallel()

	live := liveFeature()
	draft := revision.NewDraft(live, 4, author, now)

	assert.Equal(t, revision.StatusDraft, draft.Status)
	assert.Equal(t, 4, draft.Version)
	assert.Equal(t, 3, draft.BaseVersion)
	assert.Equal(t, "false", draft.DefaultValue)
	assert.Equal(t, []string{"production", "staging"}, draft.Environments())
	require.Len(t, draft.Log, 1)

	draft.Rules["production"][0] = force("b", "false")
	assert.Equal(t, "a", live.EnvironmentSettings["production"].Rules[0].Common().ID, "draft must not alias live rules")
}

func TestNewInitial(t *testing.T) {
	t.Parallel()

	f := liveFeature()
	f.Version = 1
	rev := revision.NewInitial(f, author, now)
	assert.Equal(t, revision.StatusPublished, rev.Status)
	assert.Equal(t, 1, rev.Version)
	require.NotNil(t, rev.PublishedBy)
	assert.Equal(t, author, *rev.PublishedBy)
	assert.False(t, rev.Status.Active())
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("review flow", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)

		rev, err := rev.Fire(ctx, revision.EventSubmit, author, "", now)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusPendingReview, rev.Status)

		rev, err = rev.Review(ctx, revision.ReviewRequestChanges, review, "needs work", now)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusChangesRequested, rev.Status)

		rev, err = rev.Fire(ctx, revision.EventSubmit, author, "", now)
		require.NoError(t, err)
		rev, err = rev.Review(ctx, revision.ReviewApprove, review, "", now)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusApproved, rev.Status)

		rev, err = rev.Fire(ctx, revision.EventPublish, review, "ship it", now)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusPublished, rev.Status)
		assert.Equal(t, "ship it", rev.Comment)
		require.NotNil(t, rev.DatePublished)
	})

	t.Run("author cannot review", func(t *testing.T) {
		t.Parallel()
		rev, err := revision.NewDraft(liveFeature(), 4, author, now).Fire(ctx, revision.EventSubmit, author, "", now)
		require.NoError(t, err)

		_, err = rev.Review(ctx, revision.ReviewApprove, author, "", now)
		require.ErrorIs(t, err, revision.ErrSelfReview)
		assert.False(t, rev.Can(revision.EventApprove, author))
		assert.True(t, rev.Can(revision.EventApprove, review))
	})

	t.Run("terminal revisions reject every event", func(t *testing.T) {
		t.Parallel()
		for _, status := range []revision.Status{revision.StatusPublished, revision.StatusDiscarded} {
			rev := revision.NewDraft(liveFeature(), 4, author, now)
			rev.Status = status
			for _, ev := range []revision.Event{revision.EventSubmit, revision.EventPublish, revision.EventDiscard, revision.EventEdit} {
				_, err := rev.Fire(ctx, ev, review, "", now)
				require.ErrorIs(t, err, revision.ErrInvalidRevisionState, "%s on %s", ev, status)
			}
			_, err := rev.Review(ctx, revision.ReviewComment, review, "hi", now)
			require.ErrorIs(t, err, revision.ErrInvalidRevisionState)
		}
	})

	t.Run("comment keeps status", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)
		next, err := rev.Review(ctx, revision.ReviewComment, review, "looks fine", now)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusDraft, next.Status)
		assert.Len(t, next.Log, 2)
		assert.Len(t, rev.Log, 1)
	})
}

func TestEditing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("add edit move delete", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)

		rev, err := rev.AddRule(ctx, "production", force("b", "false"), author, now)
		require.NoError(t, err)
		rev, err = rev.AddRule(ctx, "dev", force("c", "true"), author, now)
		require.NoError(t, err)
		require.Len(t, rev.Rules["production"], 2)
		require.Len(t, rev.Rules["dev"], 1)

		rev, err = rev.MoveRule(ctx, "production", 1, 0, author, now)
		require.NoError(t, err)
		assert.Equal(t, "b", rev.Rules["production"][0].Common().ID)

		rev, err = rev.EditRule(ctx, "production", 1, force("a", "false"), author, now)
		require.NoError(t, err)
		assert.Equal(t, "false", rev.Rules["production"][1].(feature.ForceRule).Value)

		rev, err = rev.DeleteRule(ctx, "production", 0, author, now)
		require.NoError(t, err)
		require.Len(t, rev.Rules["production"], 1)
		assert.Equal(t, "a", rev.Rules["production"][0].Common().ID)

		rev, err = rev.SetDefaultValue(ctx, "true", author, now)
		require.NoError(t, err)
		assert.Equal(t, "true", rev.DefaultValue)
	})

	t.Run("bad index fails with unknown rule", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)

		_, err := rev.EditRule(ctx, "production", 5, force("x", "1"), author, now)
		require.ErrorIs(t, err, revision.ErrUnknownRule)
		_, err = rev.DeleteRule(ctx, "staging", 0, author, now)
		require.ErrorIs(t, err, revision.ErrUnknownRule)
		_, err = rev.MoveRule(ctx, "production", 0, -1, author, now)
		require.ErrorIs(t, err, revision.ErrUnknownRule)
	})

	t.Run("nil rule is rejected", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)
		_, err := rev.AddRule(ctx, "production", nil, author, now)
		require.ErrorIs(t, err, feature.ErrUnknownRuleKind)
		_, err = rev.EditRule(ctx, "production", 0, nil, author, now)
		require.ErrorIs(t, err, feature.ErrUnknownRuleKind)
		assert.Len(t, rev.Rules["production"], 1)
	})

	t.Run("duplicate rule id", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)
		_, err := rev.AddRule(ctx, "production", force("a", "x"), author, now)
		require.ErrorIs(t, err, revision.ErrDuplicateRule)
	})

	t.Run("editing a reviewed revision returns it to draft", func(t *testing.T) {
		t.Parallel()
		rev, err := revision.NewDraft(liveFeature(), 4, author, now).Fire(ctx, revision.EventSubmit, author, "", now)
		require.NoError(t, err)
		rev, err = rev.Review(ctx, revision.ReviewApprove, review, "", now)
		require.NoError(t, err)

		edited, err := rev.SetDefaultValue(ctx, "true", author, now)
		require.NoError(t, err)
		assert.Equal(t, revision.StatusDraft, edited.Status)
		assert.Equal(t, revision.StatusApproved, rev.Status)
	})

	t.Run("terminal revision cannot be edited", func(t *testing.T) {
		t.Parallel()
		rev := revision.NewDraft(liveFeature(), 4, author, now)
		rev.Status = revision.StatusDiscarded
		_, err := rev.AddRule(ctx, "production", force("z", "1"), author, now)
		require.ErrorIs(t, err, revision.ErrInvalidRevisionState)
	})
}
