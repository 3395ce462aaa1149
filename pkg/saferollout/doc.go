// Package saferollout models guarded staged rollouts referenced by safe-rollout feature rules.
//
// A rollout's status mirrors the status declared by the rule that references it and is kept in
// sync when a revision is published. When a rollout starts running for the first time, a
// Scheduler seeds its measurement and ramp-up timestamps from the organization's ramp-up config:
//
//	sr.StartedAt = &now
//	sr, err = saferollout.IntervalScheduler{}.Schedule(ctx, sr, org.EffectiveRampUp(), now)
package saferollout
