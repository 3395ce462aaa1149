package feature

import "slices"

// ResolveLinkedExperiments returns the experiment ids a feature is linked to.
// Existing links come first in their original order (duplicates dropped), followed by ids
// referenced by experiment-ref rules in envIDs order then rule order; the first occurrence
// wins. Links are never dropped here so past revisions keep rendering after a rule is removed.
func ResolveLinkedExperiments(f *Feature, envIDs []string) []string {
	seen := make(map[string]struct{}, len(f.LinkedExperiments))
	out := make([]string, 0, len(f.LinkedExperiments))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range f.LinkedExperiments {
		add(id)
	}
	for _, env := range envIDs {
		settings, ok := f.EnvironmentSettings[env]
		if !ok {
			continue
		}
		for _, r := range settings.Rules {
			if ref, ok := r.(ExperimentRefRule); ok {
				add(ref.ExperimentID)
			}
		}
	}
	return out
}

// UnlinkExperiment returns the linked experiment ids without experimentID.
// This is the only path that shrinks the list.
func UnlinkExperiment(f *Feature, experimentID string) []string {
	return slices.DeleteFunc(slices.Clone(f.LinkedExperiments), func(id string) bool {
		return id == experimentID
	})
}

// SafeRolloutRefs returns the safe-rollout ids referenced in settings with the status each
// rule declares. When several rules reference one rollout, the last declaration in
// envIDs-then-rule order wins.
func SafeRolloutRefs(settings map[string]EnvironmentSettings, envIDs []string) map[string]SafeRolloutStatus {
	out := make(map[string]SafeRolloutStatus)
	for _, env := range envIDs {
		s, ok := settings[env]
		if !ok {
			continue
		}
		for _, r := range s.Rules {
			if sr, ok := r.(SafeRolloutRule); ok && sr.SafeRolloutID != "" {
				out[sr.SafeRolloutID] = sr.Status
			}
		}
	}
	return out
}
