package features

import (
	"context"
	"maps"
	"slices"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

// EditFunc edits a revision and returns the modified copy, typically through
// revision methods such as AddRule or SetDefaultValue.
type EditFunc func(rev *revision.Revision) (*revision.Revision, error)

// Revisions lists every revision of the feature ordered by version.
func (s *Service) Revisions(ctx context.Context, sc Scope, id string) ([]*revision.Revision, error) {
	if _, err := s.load(ctx, sc, id); err != nil {
		return nil, err
	}
	return s.revisions.List(ctx, sc.Org.ID, id)
}

// CreateDraft branches a new draft revision from the live feature. The draft carries
// every organization environment. The feature's HasDrafts flag is raised if needed.
func (s *Service) CreateDraft(ctx context.Context, sc Scope, id string) (RevisionOutcome, error) {
	f, err := s.load(ctx, sc, id)
	if err != nil {
		return RevisionOutcome{}, err
	}
	version, err := s.nextVersion(ctx, f)
	if err != nil {
		return RevisionOutcome{}, err
	}

	live := f.Clone()
	live.EnvironmentSettings = feature.ResolveEnvironmentSettings(f, sc.Org.Environments)
	draft := revision.NewDraft(live, version, sc.Actor, sc.now())
	if err := s.revisions.Create(ctx, draft); err != nil {
		return RevisionOutcome{}, err
	}

	out := RevisionOutcome{Outcome: Outcome{Feature: f}, Revision: draft}
	if !f.HasDrafts {
		committed, err := s.commit(ctx, sc, f, feature.Patch{HasDrafts: feature.Ptr(true)}, notify.ActionUpdated)
		if err != nil {
			return RevisionOutcome{}, err
		}
		out.Outcome = committed
	}
	return out, nil
}

// EditDraft applies edit to an active revision and stores the result. Rules may only
// target organization environments.
func (s *Service) EditDraft(ctx context.Context, sc Scope, id string, version int, edit EditFunc) (*revision.Revision, error) {
	rev, err := s.activeRevision(ctx, sc, id, version)
	if err != nil {
		return nil, err
	}

	next, err := edit(rev.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil || next.Organization != rev.Organization || next.FeatureID != rev.FeatureID || next.Version != rev.Version {
		return nil, errorf(revision.ErrInvalidRevisionState, "edit must keep the revision identity")
	}
	if err := feature.ValidateEnvironments(sc.envIDs(), slices.Sorted(maps.Keys(next.Rules))...); err != nil {
		return nil, err
	}
	if err := s.revisions.Update(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// SubmitForReview moves a draft or changes-requested revision to pending review.
func (s *Service) SubmitForReview(ctx context.Context, sc Scope, id string, version int, comment string) (*revision.Revision, error) {
	return s.transition(ctx, sc, id, version, func(rev *revision.Revision) (*revision.Revision, error) {
		return rev.Fire(ctx, revision.EventSubmit, sc.Actor, comment, sc.now())
	})
}

// Review records a review decision. Authors cannot review their own revision.
func (s *Service) Review(ctx context.Context, sc Scope, id string, version int, decision revision.ReviewDecision, comment string) (*revision.Revision, error) {
	return s.transition(ctx, sc, id, version, func(rev *revision.Revision) (*revision.Revision, error) {
		return rev.Review(ctx, decision, sc.Actor, comment, sc.now())
	})
}

// Discard abandons an active revision and recomputes the feature's HasDrafts flag.
func (s *Service) Discard(ctx context.Context, sc Scope, id string, version int, comment string) (RevisionOutcome, error) {
	rev, err := s.transition(ctx, sc, id, version, func(rev *revision.Revision) (*revision.Revision, error) {
		return rev.Fire(ctx, revision.EventDiscard, sc.Actor, comment, sc.now())
	})
	if err != nil {
		return RevisionOutcome{}, err
	}

	f, err := s.load(ctx, sc, id)
	if err != nil {
		return RevisionOutcome{}, err
	}
	out := RevisionOutcome{Outcome: Outcome{Feature: f}, Revision: rev}

	hasDrafts, err := s.hasOtherDrafts(ctx, f, 0)
	if err != nil {
		return RevisionOutcome{}, err
	}
	if hasDrafts != f.HasDrafts {
		committed, err := s.commit(ctx, sc, f, feature.Patch{HasDrafts: &hasDrafts}, notify.ActionUpdated)
		if err != nil {
			return RevisionOutcome{}, err
		}
		out.Outcome = committed
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, sc Scope, id string, version int, fire EditFunc) (*revision.Revision, error) {
	rev, err := s.activeRevision(ctx, sc, id, version)
	if err != nil {
		return nil, err
	}
	next, err := fire(rev)
	if err != nil {
		return nil, err
	}
	if err := s.revisions.Update(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) activeRevision(ctx context.Context, sc Scope, id string, version int) (*revision.Revision, error) {
	if _, err := s.load(ctx, sc, id); err != nil {
		return nil, err
	}
	rev, err := s.revisions.Get(ctx, sc.Org.ID, id, version)
	if err != nil {
		return nil, err
	}
	if !rev.Status.Active() {
		return nil, errorf(revision.ErrInvalidRevisionState, "revision %d is %s", version, rev.Status)
	}
	return rev, nil
}

func (s *Service) nextVersion(ctx context.Context, f *feature.Feature) (int, error) {
	latest, err := s.revisions.LatestVersion(ctx, f.Organization, f.ID)
	if err != nil {
		return 0, err
	}
	return max(latest, f.Version) + 1, nil
}

// hasOtherDrafts reports whether an active revision other than except exists.
func (s *Service) hasOtherDrafts(ctx context.Context, f *feature.Feature, except int) (bool, error) {
	revs, err := s.revisions.List(ctx, f.Organization, f.ID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(revs, func(r *revision.Revision) bool {
		return r.Version != except && r.Status.Active()
	}), nil
}
