package saferollout

import (
	"slices"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

// RampUpStep is one stage of a ramp-up: the share of traffic served the variation.
type RampUpStep struct {
	Percent float64 `json:"percent" bson:"percent"`
}

// RampUpSchedule tracks automatic traffic increases.
type RampUpSchedule struct {
	Enabled    bool         `json:"enabled" bson:"enabled"`
	Step       int          `json:"step" bson:"step"`
	Steps      []RampUpStep `json:"steps" bson:"steps"`
	NextUpdate *time.Time   `json:"next_update,omitempty" bson:"next_update,omitempty"`
	LastUpdate *time.Time   `json:"last_update,omitempty" bson:"last_update,omitempty"`
}

// SafeRollout is a guarded staged rollout referenced by safe-rollout rules.
type SafeRollout struct {
	ID                  string                    `json:"id" bson:"_id"`
	Organization        string                    `json:"organization" bson:"organization"`
	FeatureID           string                    `json:"feature_id" bson:"feature_id"`
	Environment         string                    `json:"environment" bson:"environment"`
	Status              feature.SafeRolloutStatus `json:"status" bson:"status"`
	StartedAt           *time.Time                `json:"started_at,omitempty" bson:"started_at,omitempty"`
	NextSnapshotAttempt *time.Time                `json:"next_snapshot_attempt,omitempty" bson:"next_snapshot_attempt,omitempty"`
	RampUpSchedule      RampUpSchedule            `json:"ramp_up_schedule" bson:"ramp_up_schedule"`
	DateCreated         time.Time                 `json:"date_created" bson:"date_created"`
	DateUpdated         time.Time                 `json:"date_updated" bson:"date_updated"`
}

// Clone returns a deep copy.
func (s *SafeRollout) Clone() *SafeRollout {
	if s == nil {
		return nil
	}
	c := *s
	c.StartedAt = cloneTime(s.StartedAt)
	c.NextSnapshotAttempt = cloneTime(s.NextSnapshotAttempt)
	c.RampUpSchedule.Steps = slices.Clone(s.RampUpSchedule.Steps)
	c.RampUpSchedule.NextUpdate = cloneTime(s.RampUpSchedule.NextUpdate)
	c.RampUpSchedule.LastUpdate = cloneTime(s.RampUpSchedule.LastUpdate)
	return &c
}

// NeedsStart reports whether the rollout is running but was never started.
func (s *SafeRollout) NeedsStart() bool {
	return s.Status == feature.SafeRolloutRunning && s.StartedAt == nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
