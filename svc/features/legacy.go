package features

import (
	"context"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

func needsLegacyMigration(f *feature.Feature) bool {
	return f.LegacyDraft != nil && !f.LegacyDraftMigrated
}

// MigrateLegacyDraft converts the feature's pre-revision inline draft into a draft revision.
// Running it again after a successful migration is a no-op.
func (s *Service) MigrateLegacyDraft(ctx context.Context, sc Scope, id string) (RevisionOutcome, error) {
	f, err := s.load(ctx, sc, id)
	if err != nil {
		return RevisionOutcome{}, err
	}
	if !needsLegacyMigration(f) {
		return RevisionOutcome{Outcome: Outcome{Feature: f}}, nil
	}
	return s.migrateLegacyDraft(ctx, sc, f)
}

// migrateLegacyDraft creates a draft revision from an active legacy draft that still
// differs from the live feature, then marks the feature migrated. Rules for environments
// the organization no longer has are dropped.
func (s *Service) migrateLegacyDraft(ctx context.Context, sc Scope, f *feature.Feature) (RevisionOutcome, error) {
	legacy := f.LegacyDraft
	patch := feature.Patch{LegacyDraftMigrated: feature.Ptr(true)}

	var draft *revision.Revision
	if legacy.Active {
		version, err := s.nextVersion(ctx, f)
		if err != nil {
			return RevisionOutcome{}, err
		}

		live := f.Clone()
		live.EnvironmentSettings = feature.ResolveEnvironmentSettings(f, sc.Org.Environments)
		candidate := revision.NewDraft(live, version, sc.Actor, sc.now())
		candidate.Comment = legacy.Comment

		changed := false
		if legacy.DefaultValue != nil && *legacy.DefaultValue != candidate.DefaultValue {
			candidate.DefaultValue = *legacy.DefaultValue
			changed = true
		}
		for _, env := range sc.envIDs() {
			rules, ok := legacy.Rules[env]
			if !ok || rules.Equal(candidate.Rules[env]) {
				continue
			}
			candidate.Rules[env] = rules.Clone()
			changed = true
		}

		if changed {
			if err := s.revisions.Create(ctx, candidate); err != nil {
				return RevisionOutcome{}, err
			}
			draft = candidate
			patch.HasDrafts = feature.Ptr(true)
		}
	}

	out, err := s.commit(ctx, sc, f, patch, notify.ActionUpdated)
	if err != nil {
		return RevisionOutcome{}, err
	}
	return RevisionOutcome{Outcome: out, Revision: draft}, nil
}
