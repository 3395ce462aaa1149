package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

// Publish installs a merge result into the live feature and marks rev published.
//
// Only environments present in result.Rules are replaced, each keeping its enabled flag
// (false when the environment had no stored settings); every other environment is left
// exactly as it was. The feature's version becomes rev.Version and the derived fields
// are recomputed. Referenced safe rollouts are synchronized before the feature write,
// which is conditional on f.Version, and restored when that write fails.
//
// Checks run before any write: a published or discarded revision fails with
// revision.ErrInvalidRevisionState, an empty result with revision.ErrNoChanges and a
// revision not newer than the live feature with revision.ErrStaleRevision. When the
// mark fails after the feature write, the returned outcome is valid and the error wraps
// ErrPartialPublish; PublishDraft completes such a publish.
func (s *Service) Publish(ctx context.Context, sc Scope, f *feature.Feature, rev *revision.Revision, result revision.Result, comment string) (Outcome, error) {
	if rev == nil || f == nil {
		return Outcome{}, errorf(revision.ErrInvalidRevisionState, "feature and revision are required")
	}
	ctx = sc.logContext(ctx)
	if !rev.Status.Active() {
		return Outcome{}, errorf(revision.ErrInvalidRevisionState, "can only publish a draft or review revision, got %s", rev.Status)
	}
	if rev.Organization != f.Organization || rev.FeatureID != f.ID || f.Organization != sc.Org.ID {
		return Outcome{}, errorf(revision.ErrInvalidRevisionState, "revision %s@%d does not belong to feature %s", rev.FeatureID, rev.Version, f.ID)
	}
	if err := sc.authorize(f.Project); err != nil {
		return Outcome{}, err
	}

	patch := feature.Patch{DefaultValue: result.DefaultValue}
	for _, env := range sc.envIDs() {
		rules, ok := result.Rules[env]
		if !ok {
			continue
		}
		if patch.EnvironmentSettings == nil {
			patch.EnvironmentSettings = make(map[string]feature.EnvironmentSettings)
		}
		patch.EnvironmentSettings[env] = feature.EnvironmentSettings{
			Enabled: f.EnvironmentSettings[env].Enabled,
			Rules:   rules.Clone(),
		}
	}
	if patch.DefaultValue == nil && len(patch.EnvironmentSettings) == 0 {
		return Outcome{}, errorf(revision.ErrNoChanges, "revision %d", rev.Version)
	}
	if rev.Version <= f.Version {
		return Outcome{}, errorf(revision.ErrStaleRevision, "revision %d, live version %d", rev.Version, f.Version)
	}

	now := sc.now()

	hasDrafts, err := s.hasOtherDrafts(ctx, f, rev.Version)
	if err != nil {
		return Outcome{}, err
	}
	patch.Version = &rev.Version
	patch.HasDrafts = &hasDrafts
	if !patch.TouchesEnvironments() {
		patch.SetNextScheduledUpdate = true
		patch.NextScheduledUpdate = feature.NextScheduledUpdate(f.EnvironmentSettings, sc.envIDs(), now)
	}

	out, err := s.write(ctx, sc, f, patch, notify.ActionPublished, true)
	if err != nil {
		return Outcome{}, err
	}

	if err := s.revisions.MarkPublished(ctx, sc.Org.ID, f.ID, rev.Version, sc.Actor, comment, now); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "feature committed but revision not marked published",
			logger.Organization(sc.Org.ID),
			logger.FeatureID(f.ID),
			logger.Version(rev.Version),
			logger.Error(err),
		)
		return out, errors.Join(ErrPartialPublish, err)
	}
	return out, nil
}

// completePublish finishes a publish whose feature write already happened.
// The live content is unknown to have been announced, so every partition is refreshed.
func (s *Service) completePublish(ctx context.Context, sc Scope, f *feature.Feature, rev *revision.Revision, comment string) (Outcome, error) {
	if err := s.revisions.MarkPublished(ctx, sc.Org.ID, f.ID, rev.Version, sc.Actor, comment, sc.now()); err != nil {
		return Outcome{}, err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "completed interrupted publish",
		logger.Organization(sc.Org.ID),
		logger.FeatureID(f.ID),
		logger.Version(rev.Version),
	)
	return Outcome{Feature: f, Effects: s.effects(sc, notify.ActionPublished, nil, f)}, nil
}

// PublishDraft merges an active revision with whatever was published since its base
// and publishes the result. Conflicting changes fail with revision.ErrMergeConflict.
//
// A revision whose version already equals the live version was committed by an earlier
// publish that failed to mark it. When the live feature carries every change the revision
// made, PublishDraft only marks it and notifies again; otherwise it fails with
// revision.ErrStaleRevision.
func (s *Service) PublishDraft(ctx context.Context, sc Scope, id string, version int, comment string) (RevisionOutcome, error) {
	ctx = sc.logContext(ctx)
	f, err := s.load(ctx, sc, id)
	if err != nil {
		return RevisionOutcome{}, err
	}
	rev, err := s.revisions.Get(ctx, sc.Org.ID, id, version)
	if err != nil {
		return RevisionOutcome{}, err
	}
	if !rev.Status.Active() {
		return RevisionOutcome{}, errorf(revision.ErrInvalidRevisionState, "can only publish a draft or review revision, got %s", rev.Status)
	}

	live := f.Clone()
	live.EnvironmentSettings = feature.ResolveEnvironmentSettings(f, sc.Org.Environments)
	liveContent := revision.ContentOf(live)

	var (
		out         Outcome
		baseContent revision.Content
	)
	if rev.Version == f.Version {
		if baseContent, err = s.baseContent(ctx, sc, rev, revision.Content{}); err != nil {
			return RevisionOutcome{}, err
		}
		if missing := revision.Unapplied(liveContent, baseContent, rev.Content(), sc.envIDs()); len(missing) > 0 {
			return RevisionOutcome{}, errors.Join(
				errorf(revision.ErrStaleRevision, "revision %d matches live version but its changes are not live", rev.Version),
				conflictError(missing),
			)
		}
		out, err = s.completePublish(ctx, sc, f, rev, comment)
	} else {
		if baseContent, err = s.baseContent(ctx, sc, rev, liveContent); err != nil {
			return RevisionOutcome{}, err
		}
		merged := revision.AutoMerge(liveContent, baseContent, rev.Content(), sc.envIDs())
		if !merged.Success {
			return RevisionOutcome{}, errors.Join(revision.ErrMergeConflict, conflictError(merged.Conflicts))
		}
		out, err = s.Publish(ctx, sc, f, rev, merged.Result, comment)
	}
	if err != nil && !errors.Is(err, ErrPartialPublish) {
		return RevisionOutcome{}, err
	}

	published, gerr := s.revisions.Get(ctx, sc.Org.ID, id, version)
	if gerr != nil {
		published = rev
	}
	return RevisionOutcome{Outcome: out, Revision: published}, err
}

// baseContent returns the content of rev's base revision, or fallback when it no longer exists.
func (s *Service) baseContent(ctx context.Context, sc Scope, rev *revision.Revision, fallback revision.Content) (revision.Content, error) {
	base, err := s.revisions.Get(ctx, sc.Org.ID, rev.FeatureID, rev.BaseVersion)
	switch {
	case err == nil:
		return base.Content(), nil
	case errors.Is(err, revision.ErrRevisionNotFound):
		return fallback, nil
	default:
		return revision.Content{}, err
	}
}

func conflictError(conflicts []revision.Conflict) error {
	errs := make([]error, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Environment != "" {
			errs = append(errs, fmt.Errorf("%s changed in %s", c.Field, c.Environment))
			continue
		}
		errs = append(errs, fmt.Errorf("%s changed", c.Field))
	}
	return errors.Join(errs...)
}
