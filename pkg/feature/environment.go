package feature

import (
	"slices"

	"github.com/dmitrymomot/flagkit/pkg/organization"
)

// ValidateEnvironments fails with ErrInvalidEnvironment if any id is not in known.
func ValidateEnvironments(known []string, ids ...string) error {
	for _, id := range ids {
		if !slices.Contains(known, id) {
			return errorf(ErrInvalidEnvironment, "unknown environment %q", id)
		}
	}
	return nil
}

// ResolveEnvironmentSettings returns settings for every configured environment.
// Stored settings are used as-is. A missing environment inherits a copy of its parent's
// settings (resolved recursively); without a parent it gets DefaultState and no rules.
// The feature itself is not modified.
func ResolveEnvironmentSettings(f *Feature, envs []organization.Environment) map[string]EnvironmentSettings {
	byID := make(map[string]organization.Environment, len(envs))
	for _, env := range envs {
		byID[env.ID] = env
	}

	out := make(map[string]EnvironmentSettings, len(envs))
	var resolve func(id string, visiting map[string]bool) (EnvironmentSettings, bool)
	resolve = func(id string, visiting map[string]bool) (EnvironmentSettings, bool) {
		if s, ok := out[id]; ok {
			return s, true
		}
		if s, ok := f.EnvironmentSettings[id]; ok {
			return s.Clone(), true
		}
		env, ok := byID[id]
		if !ok || visiting[id] {
			return EnvironmentSettings{}, false
		}
		visiting[id] = true
		if env.Parent != "" {
			if parent, ok := resolve(env.Parent, visiting); ok {
				return parent.Clone(), true
			}
		}
		return EnvironmentSettings{Enabled: env.DefaultState, Rules: Rules{}}, true
	}

	for _, env := range envs {
		if s, ok := resolve(env.ID, map[string]bool{}); ok {
			out[env.ID] = s
		}
	}
	return out
}

// ToggleEnvironments computes the patch that sets each environment's enabled state.
// Every key is validated before anything is computed; an unknown key rejects the batch.
// Only environments whose state actually differs are copied into the patch, with rules
// untouched. changed is false when nothing differs, in which case the caller must not write.
func ToggleEnvironments(f *Feature, envs []organization.Environment, desired map[string]bool) (patch Patch, changed bool, err error) {
	known := make([]string, 0, len(envs))
	for _, env := range envs {
		known = append(known, env.ID)
	}
	keys := make([]string, 0, len(desired))
	for env := range desired {
		keys = append(keys, env)
	}
	slices.Sort(keys)
	if err := ValidateEnvironments(known, keys...); err != nil {
		return Patch{}, false, err
	}

	current := ResolveEnvironmentSettings(f, envs)
	next := make(map[string]EnvironmentSettings, len(keys))
	for _, env := range keys {
		settings := current[env]
		if settings.Enabled == desired[env] {
			continue
		}
		settings.Enabled = desired[env]
		next[env] = settings
		changed = true
	}
	if !changed {
		return Patch{}, false, nil
	}
	return Patch{EnvironmentSettings: next}, true, nil
}
