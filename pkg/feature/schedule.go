package feature

import "time"

// NextScheduledUpdate returns the earliest schedule timestamp strictly after now across the
// rules of the given environments, or nil when no future timestamp exists.
func NextScheduledUpdate(settings map[string]EnvironmentSettings, envIDs []string, now time.Time) *time.Time {
	var next *time.Time
	for _, env := range envIDs {
		s, ok := settings[env]
		if !ok {
			continue
		}
		for _, r := range s.Rules {
			for _, sched := range r.Common().ScheduleRules {
				if sched.Timestamp == nil || !sched.Timestamp.After(now) {
					continue
				}
				if next == nil || sched.Timestamp.Before(*next) {
					t := *sched.Timestamp
					next = &t
				}
			}
		}
	}
	return next
}

// ScheduledState returns the enabled state a rule's schedule declares at now: the entry
// with the latest timestamp not after now wins, nil timestamps count as already applied.
// ok is false when no entry has taken effect yet.
func ScheduledState(r Rule, now time.Time) (enabled bool, ok bool) {
	var latest *time.Time
	for _, sched := range r.Common().ScheduleRules {
		if sched.Timestamp == nil {
			if latest == nil {
				enabled, ok = sched.Enabled, true
			}
			continue
		}
		if sched.Timestamp.After(now) {
			continue
		}
		if latest == nil || !sched.Timestamp.Before(*latest) {
			latest = sched.Timestamp
			enabled, ok = sched.Enabled, true
		}
	}
	return enabled, ok
}

// ApplySchedules returns a copy of settings with every scheduled rule's enabled flag set to
// its ScheduledState at now. Rules without an effective entry are left as they are.
// changed reports whether any flag flipped.
func ApplySchedules(settings map[string]EnvironmentSettings, now time.Time) (out map[string]EnvironmentSettings, changed bool) {
	out = CloneSettings(settings)
	for env, s := range out {
		for i, r := range s.Rules {
			enabled, ok := ScheduledState(r, now)
			if !ok || enabled == r.Common().Enabled {
				continue
			}
			s.Rules[i] = WithEnabled(r, enabled)
			changed = true
		}
		out[env] = s
	}
	return out, changed
}

// IsDue reports whether the feature has a scheduled update strictly before now.
func IsDue(f *Feature, now time.Time) bool {
	return f.NextScheduledUpdate != nil && f.NextScheduledUpdate.Before(now)
}
