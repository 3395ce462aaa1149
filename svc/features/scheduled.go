package features

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/logger"
	"github.com/dmitrymomot/flagkit/pkg/notify"
)

// FindDueFeatures returns the features of every organization whose next scheduled update
// is strictly before now.
func (s *Service) FindDueFeatures(ctx context.Context, now time.Time) ([]*feature.Feature, error) {
	return s.features.FindDue(ctx, now)
}

// ProcessScheduledUpdates applies elapsed schedule entries of every due feature and
// advances its next scheduled update. Features are processed independently and
// concurrently; a failing feature is logged and reported in the joined error while the
// rest of the batch proceeds.
func (s *Service) ProcessScheduledUpdates(ctx context.Context, now time.Time) (notify.Effects, error) {
	if s.orgs == nil {
		return notify.Effects{}, ErrNoOrganizations
	}
	due, err := s.FindDueFeatures(ctx, now)
	if err != nil {
		return notify.Effects{}, err
	}
	if len(due) == 0 {
		return notify.Effects{}, nil
	}

	var (
		mu   sync.Mutex
		eff  notify.Effects
		errs []error
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, f := range due {
		g.Go(func() error {
			out, err := s.applySchedule(ctx, f, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.LogAttrs(ctx, slog.LevelError, "scheduled update failed",
					logger.Organization(f.Organization),
					logger.FeatureID(f.ID),
					logger.Error(err),
				)
				errs = append(errs, err)
				return nil
			}
			eff = eff.Merge(out.Effects)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.LogAttrs(ctx, slog.LevelInfo, "processed scheduled updates",
		logger.Count(len(due)),
		slog.Int("failed", len(errs)),
	)
	return eff, errors.Join(errs...)
}

func (s *Service) applySchedule(ctx context.Context, f *feature.Feature, now time.Time) (Outcome, error) {
	org, err := s.orgs.Get(ctx, f.Organization)
	if err != nil {
		return Outcome{}, err
	}
	sc := SystemScope(*org, func() time.Time { return now })
	ctx = sc.logContext(ctx)
	envIDs := sc.envIDs()

	applied, _ := feature.ApplySchedules(f.EnvironmentSettings, now)
	patch := feature.Patch{
		SetNextScheduledUpdate: true,
		NextScheduledUpdate:    feature.NextScheduledUpdate(applied, envIDs, now),
	}
	for _, env := range envIDs {
		stored, ok := f.EnvironmentSettings[env]
		if !ok || stored.Rules.Equal(applied[env].Rules) {
			continue
		}
		if patch.EnvironmentSettings == nil {
			patch.EnvironmentSettings = make(map[string]feature.EnvironmentSettings)
		}
		patch.EnvironmentSettings[env] = applied[env]
	}
	return s.commit(ctx, sc, f, patch, notify.ActionScheduledUpdate)
}
