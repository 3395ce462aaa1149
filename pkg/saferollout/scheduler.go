package saferollout

import (
	"context"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/organization"
)

// Scheduler computes the next measurement and ramp-up timestamps of a freshly started rollout.
type Scheduler interface {
	Schedule(ctx context.Context, s *SafeRollout, cfg organization.RampUpConfig, now time.Time) (*SafeRollout, error)
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(ctx context.Context, s *SafeRollout, cfg organization.RampUpConfig, now time.Time) (*SafeRollout, error)

func (f SchedulerFunc) Schedule(ctx context.Context, s *SafeRollout, cfg organization.RampUpConfig, now time.Time) (*SafeRollout, error) {
	return f(ctx, s, cfg, now)
}

// IntervalScheduler schedules snapshots and ramp-up steps at fixed intervals.
type IntervalScheduler struct{}

// Schedule sets NextSnapshotAttempt to now+SnapshotInterval. When ramp-up is enabled it also
// fills missing steps from cfg and sets the next ramp-up update to now+StepInterval.
func (IntervalScheduler) Schedule(ctx context.Context, s *SafeRollout, cfg organization.RampUpConfig, now time.Time) (*SafeRollout, error) {
	out := s.Clone()

	next := now.Add(cfg.SnapshotInterval)
	out.NextSnapshotAttempt = &next

	if out.RampUpSchedule.Enabled {
		if len(out.RampUpSchedule.Steps) == 0 {
			out.RampUpSchedule.Steps = make([]RampUpStep, 0, len(cfg.Steps))
			for _, p := range cfg.Steps {
				out.RampUpSchedule.Steps = append(out.RampUpSchedule.Steps, RampUpStep{Percent: p})
			}
		}
		step := now.Add(cfg.StepInterval)
		out.RampUpSchedule.NextUpdate = &step
		out.RampUpSchedule.Step = 0
	}

	out.DateUpdated = now
	return out, nil
}
