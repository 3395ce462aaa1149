package features

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

// Create stores a new feature at version 1 together with its initial published revision.
// Missing environments are filled from the organization's inheritance defaults.
func (s *Service) Create(ctx context.Context, sc Scope, f *feature.Feature) (Outcome, error) {
	if f == nil {
		return Outcome{}, errorf(feature.ErrInvalidFeature, "feature cannot be nil")
	}
	if err := sc.authorize(f.Project); err != nil {
		return Outcome{}, err
	}
	if f.Organization != "" && f.Organization != sc.Org.ID {
		return Outcome{}, errorf(feature.ErrInvalidFeature, "feature belongs to organization %q", f.Organization)
	}
	envIDs := sc.envIDs()
	if err := feature.ValidateEnvironments(envIDs, slices.Sorted(maps.Keys(f.EnvironmentSettings))...); err != nil {
		return Outcome{}, err
	}

	now := sc.now()
	next := f.Clone()
	next.Organization = sc.Org.ID
	next.Version = 1
	next.DateCreated = now
	next.DateUpdated = now
	next.EnvironmentSettings = feature.ResolveEnvironmentSettings(next, sc.Org.Environments)
	next.LinkedExperiments = feature.ResolveLinkedExperiments(next, envIDs)
	next.NextScheduledUpdate = feature.NextScheduledUpdate(next.EnvironmentSettings, envIDs, now)
	next.HasDrafts = false
	next.LegacyDraft = nil
	next.LegacyDraftMigrated = true

	if err := next.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := s.features.Create(ctx, next); err != nil {
		return Outcome{}, err
	}
	if err := s.revisions.Create(ctx, revision.NewInitial(next, sc.Actor, now)); err != nil {
		if derr := s.features.Delete(ctx, next.Organization, next.ID); derr != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "failed to roll back feature without initial revision",
				logger.Organization(next.Organization),
				logger.FeatureID(next.ID),
				logger.Error(derr),
			)
		}
		return Outcome{}, err
	}

	return Outcome{Feature: next.Clone(), Effects: s.effects(sc, notify.ActionCreated, nil, next)}, nil
}

// Get returns the feature with every organization environment present.
// A feature still carrying an unmigrated legacy draft is migrated on the way out;
// the returned effects describe that write and are empty otherwise.
func (s *Service) Get(ctx context.Context, sc Scope, id string) (Outcome, error) {
	f, err := s.load(ctx, sc, id)
	if err != nil {
		return Outcome{}, err
	}

	var eff notify.Effects
	if needsLegacyMigration(f) {
		out, err := s.migrateLegacyDraft(ctx, sc, f)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "legacy draft migration failed",
				logger.Organization(sc.Org.ID),
				logger.FeatureID(id),
				logger.Error(err),
			)
		} else {
			f, eff = out.Feature, out.Effects
		}
	}

	view := f.Clone()
	view.EnvironmentSettings = feature.ResolveEnvironmentSettings(f, sc.Org.Environments)
	return Outcome{Feature: view, Effects: eff}, nil
}

// List returns the features matching filter that the actor may read, with every
// organization environment present.
func (s *Service) List(ctx context.Context, sc Scope, filter feature.Filter) ([]*feature.Feature, error) {
	all, err := s.features.List(ctx, sc.Org.ID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*feature.Feature, 0, len(all))
	for _, f := range all {
		if sc.authorize(f.Project) != nil {
			continue
		}
		f.EnvironmentSettings = feature.ResolveEnvironmentSettings(f, sc.Org.Environments)
		out = append(out, f)
	}
	return out, nil
}

// Update applies a direct change to the live feature without a revision. Version and
// the derived fields belong to the publish flow and are rejected. An empty patch is a
// no-op that issues no write.
func (s *Service) Update(ctx context.Context, sc Scope, id string, patch feature.Patch) (Outcome, error) {
	if patch.Version != nil || patch.HasDrafts != nil || patch.LinkedExperiments != nil ||
		patch.SetNextScheduledUpdate || patch.LegacyDraftMigrated != nil {
		return Outcome{}, errorf(ErrReadOnlyField, "version and derived fields are managed by publishing")
	}
	if err := feature.ValidateEnvironments(sc.envIDs(), slices.Sorted(maps.Keys(patch.EnvironmentSettings))...); err != nil {
		return Outcome{}, err
	}

	cur, err := s.load(ctx, sc, id)
	if err != nil {
		return Outcome{}, err
	}
	if patch.Project != nil {
		if err := sc.authorize(*patch.Project); err != nil {
			return Outcome{}, err
		}
	}
	if patch.IsEmpty() {
		return Outcome{Feature: cur}, nil
	}
	return s.commit(ctx, sc, cur, patch, notify.ActionUpdated)
}

// ToggleEnvironments sets the enabled state of the given environments. Unknown
// environments reject the whole batch before anything is read or written. When no
// environment changes state the stored feature is returned and nothing is written.
func (s *Service) ToggleEnvironments(ctx context.Context, sc Scope, id string, desired map[string]bool) (Outcome, error) {
	if err := feature.ValidateEnvironments(sc.envIDs(), slices.Sorted(maps.Keys(desired))...); err != nil {
		return Outcome{}, err
	}
	cur, err := s.load(ctx, sc, id)
	if err != nil {
		return Outcome{}, err
	}

	patch, changed, err := feature.ToggleEnvironments(cur, sc.Org.Environments, desired)
	if err != nil {
		return Outcome{}, err
	}
	if !changed {
		return Outcome{Feature: cur}, nil
	}
	return s.commit(ctx, sc, cur, patch, notify.ActionUpdated)
}

// Delete removes the feature and all its revisions.
func (s *Service) Delete(ctx context.Context, sc Scope, id string) (Outcome, error) {
	cur, err := s.load(ctx, sc, id)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.features.Delete(ctx, sc.Org.ID, id); err != nil {
		return Outcome{}, err
	}
	if err := s.revisions.DeleteAll(ctx, sc.Org.ID, id); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "failed to delete revisions of removed feature",
			logger.Organization(sc.Org.ID),
			logger.FeatureID(id),
			logger.Error(err),
		)
	}
	return Outcome{Effects: s.effects(sc, notify.ActionDeleted, cur, nil)}, nil
}

// RemoveTag strips tag from every feature of the organization that carries it.
func (s *Service) RemoveTag(ctx context.Context, sc Scope, tag string) (notify.Effects, error) {
	return s.bulk(ctx, sc, feature.Filter{Tag: tag, IncludeArchived: true}, notify.ActionTagRemoved,
		func(f *feature.Feature) (feature.Patch, bool) {
			tags := slices.DeleteFunc(slices.Clone(f.Tags), func(t string) bool { return t == tag })
			return feature.Patch{Tags: &tags}, len(tags) != len(f.Tags)
		})
}

// RemoveProject detaches every feature from a deleted project.
func (s *Service) RemoveProject(ctx context.Context, sc Scope, project string) (notify.Effects, error) {
	if project == "" {
		return notify.Effects{}, nil
	}
	return s.bulk(ctx, sc, feature.Filter{Project: project, IncludeArchived: true}, notify.ActionProjectRemoved,
		func(f *feature.Feature) (feature.Patch, bool) {
			return feature.Patch{Project: feature.Ptr("")}, f.Project == project
		})
}

// UnlinkExperiment removes an experiment from the linked experiments of every feature
// referencing it. This is the only operation that shrinks LinkedExperiments.
func (s *Service) UnlinkExperiment(ctx context.Context, sc Scope, experimentID string) (notify.Effects, error) {
	return s.bulk(ctx, sc, feature.Filter{ExperimentID: experimentID, IncludeArchived: true}, notify.ActionUpdated,
		func(f *feature.Feature) (feature.Patch, bool) {
			linked := feature.UnlinkExperiment(f, experimentID)
			return feature.Patch{LinkedExperiments: &linked}, len(linked) != len(f.LinkedExperiments)
		})
}

// bulk commits a patch to every matching feature independently. A failure on one feature
// is logged and reported in the joined error without stopping the rest; effects cover
// every feature that was written.
func (s *Service) bulk(ctx context.Context, sc Scope, filter feature.Filter, action notify.Action, build func(*feature.Feature) (feature.Patch, bool)) (notify.Effects, error) {
	matches, err := s.features.List(ctx, sc.Org.ID, filter)
	if err != nil {
		return notify.Effects{}, err
	}

	var eff notify.Effects
	var errs []error
	for _, f := range matches {
		patch, changed := build(f)
		if !changed {
			continue
		}
		out, err := s.commit(ctx, sc, f, patch, action)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "bulk feature update failed",
				logger.Action(string(action)),
				logger.Organization(sc.Org.ID),
				logger.FeatureID(f.ID),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		eff = eff.Merge(out.Effects)
	}
	return eff, errors.Join(errs...)
}
