package features

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/notify"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/revision"
	"github.com/dmitrymomot/flagkit/pkg/saferollout"
)

// Service orchestrates feature mutations over the feature, revision and safe-rollout stores.
// Every mutating method returns the effects of what it committed; the caller hands them
// to a notify.Dispatcher.
type Service struct {
	features    feature.Store
	revisions   revision.Store
	rollouts    saferollout.Store
	orgs        organization.Provider
	scheduler   saferollout.Scheduler
	logger      *slog.Logger
	concurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScheduler sets the collaborator that schedules freshly started safe rollouts.
// Default is saferollout.IntervalScheduler.
func WithScheduler(sch saferollout.Scheduler) Option {
	return func(s *Service) {
		s.scheduler = sch
	}
}

// WithOrganizations sets the provider used by background processing to resolve the
// settings of each organization.
func WithOrganizations(p organization.Provider) Option {
	return func(s *Service) {
		s.orgs = p
	}
}

// WithBatchConcurrency bounds how many features ProcessScheduledUpdates handles at once.
// Default is 8.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a feature service.
func New(features feature.Store, revisions revision.Store, rollouts saferollout.Store, opts ...Option) *Service {
	s := &Service{
		features:    features,
		revisions:   revisions,
		rollouts:    rollouts,
		scheduler:   saferollout.IntervalScheduler{},
		logger:      slog.Default(),
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("features"))
	return s
}

// load fetches a feature of the scope's organization and checks project access.
func (s *Service) load(ctx context.Context, sc Scope, id string) (*feature.Feature, error) {
	f, err := s.features.Get(ctx, sc.Org.ID, id)
	if err != nil {
		return nil, err
	}
	if err := sc.authorize(f.Project); err != nil {
		return nil, err
	}
	return f, nil
}

// commit applies patch to cur, recomputes derived fields and writes the result
// conditionally on cur.Version. Safe-rollout records are left alone; only a publish
// synchronizes them.
func (s *Service) commit(ctx context.Context, sc Scope, cur *feature.Feature, patch feature.Patch, action notify.Action) (Outcome, error) {
	return s.write(ctx, sc, cur, patch, action, false)
}

// write is commit with optional safe-rollout synchronization. Synchronized records
// are restored when the feature write fails.
func (s *Service) write(ctx context.Context, sc Scope, cur *feature.Feature, patch feature.Patch, action notify.Action, syncRollouts bool) (Outcome, error) {
	ctx = sc.logContext(ctx)
	now := sc.now()
	next := cur.Apply(patch)

	undo := func(context.Context) {}
	if patch.TouchesEnvironments() {
		envIDs := sc.envIDs()
		next.LinkedExperiments = feature.ResolveLinkedExperiments(next, envIDs)
		next.NextScheduledUpdate = feature.NextScheduledUpdate(next.EnvironmentSettings, envIDs, now)
		if syncRollouts {
			var err error
			if undo, err = s.syncSafeRollouts(ctx, sc, cur.EnvironmentSettings, next.EnvironmentSettings, now); err != nil {
				return Outcome{}, err
			}
		}
	}
	next.DateUpdated = now

	if err := s.features.Update(ctx, next, cur.Version); err != nil {
		undo(ctx)
		return Outcome{}, err
	}
	return Outcome{Feature: next, Effects: s.effects(sc, action, cur, next)}, nil
}

// effects builds the single Change of a committed write, plus a Sync when the
// organization mirrors features to an experimentation system.
func (s *Service) effects(sc Scope, action notify.Action, prev, cur *feature.Feature) notify.Effects {
	id := ""
	switch {
	case cur != nil:
		id = cur.ID
	case prev != nil:
		id = prev.ID
	}

	eff := notify.Effects{Changes: []notify.Change{{
		Action:       action,
		Organization: sc.Org.ID,
		FeatureID:    id,
		Environments: sc.envIDs(),
		Previous:     prev.Clone(),
		Current:      cur.Clone(),
		Actor:        sc.Actor.ID,
		At:           sc.now(),
	}}}

	if sc.Org.Integrations.ExperimentSync.Enabled {
		synced := cur
		if synced == nil {
			synced = prev
		}
		eff.Syncs = []notify.Sync{{Action: action, Organization: sc.Org.ID, Feature: synced.Clone()}}
	}
	return eff
}

// syncSafeRollouts aligns safe-rollout entities with the rules that reference them.
// A rollout referenced before but not after is stopped. A referenced rollout takes the
// status its rule declares; a running one that never started gets StartedAt = now and
// is scheduled. Scheduling failures are logged; store failures abort the caller.
//
// The returned undo writes back the records as they were before the call. On a store
// failure the records already written are restored before returning.
func (s *Service) syncSafeRollouts(ctx context.Context, sc Scope, prev, next map[string]feature.EnvironmentSettings, now time.Time) (func(context.Context), error) {
	var originals []*saferollout.SafeRollout
	undo := func(ctx context.Context) {
		ctx = context.WithoutCancel(ctx)
		for _, r := range originals {
			if err := s.rollouts.Update(ctx, r); err != nil {
				s.logger.LogAttrs(ctx, slog.LevelError, "failed to restore safe rollout",
					logger.Organization(sc.Org.ID),
					slog.String("safe_rollout_id", r.ID),
					logger.Error(err),
				)
			}
		}
	}

	envIDs := sc.envIDs()
	before := feature.SafeRolloutRefs(prev, envIDs)
	after := feature.SafeRolloutRefs(next, envIDs)

	ids := slices.Sorted(maps.Keys(before))
	for id := range after {
		if _, ok := before[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || s.rollouts == nil {
		return undo, nil
	}

	rollouts, err := s.rollouts.GetByIDs(ctx, sc.Org.ID, ids)
	if err != nil {
		return undo, err
	}

	for _, r := range rollouts {
		updated := r.Clone()
		status, referenced := after[r.ID]
		switch {
		case !referenced:
			updated.Status = feature.SafeRolloutStopped
		case status != "":
			updated.Status = status
		}

		if referenced && updated.NeedsStart() {
			started := now
			updated.StartedAt = &started
			if s.scheduler != nil {
				scheduled, err := s.scheduler.Schedule(ctx, updated, sc.Org.EffectiveRampUp(), now)
				if err != nil {
					s.logger.LogAttrs(ctx, slog.LevelWarn, "safe rollout scheduling failed",
						logger.Organization(sc.Org.ID),
						slog.String("safe_rollout_id", r.ID),
						logger.Error(err),
					)
				} else {
					updated = scheduled
				}
			}
		}

		if updated.Status == r.Status && (r.StartedAt != nil || updated.StartedAt == nil) {
			continue
		}
		updated.DateUpdated = now
		if err := s.rollouts.Update(ctx, updated); err != nil {
			undo(ctx)
			return func(context.Context) {}, err
		}
		originals = append(originals, r)
	}
	return undo, nil
}
