// Package feature models the feature aggregate: a versioned configuration entity whose
// served value varies by environment and by an ordered list of targeting rules.
//
// # Architecture
//
// The package is built around three concepts:
//
// 1. Feature - the aggregate snapshot, treated as immutable once read
// 2. Rule - a closed tagged union (force, rollout, experiment, experiment-ref, safe-rollout)
// 3. Patch - an explicit change set; Apply returns a new snapshot
//
// Operations are pure functions over snapshots. Persistence is a separate, explicit step
// through the Store interface, whose Update is a compare-and-swap on Version so concurrent
// publishes fail with ErrVersionConflict instead of silently overwriting each other.
//
// # Environment settings
//
// Stored settings may lack environments the organization added later.
// ResolveEnvironmentSettings synthesizes them at read time from the environment's parent,
// falling back to the environment's default state:
//
//	settings := feature.ResolveEnvironmentSettings(f, org.Environments)
//
// ToggleEnvironments validates every requested environment before computing anything and
// reports changed=false when the request matches the current state:
//
//	patch, changed, err := feature.ToggleEnvironments(f, org.Environments, map[string]bool{
//		"production": true,
//	})
//	if errors.Is(err, feature.ErrInvalidEnvironment) {
//		// unknown environment, nothing was computed
//	}
//	if changed {
//		next := f.Apply(patch)
//		// persist next
//	}
//
// # Derived fields
//
// LinkedExperiments only grows through ResolveLinkedExperiments; UnlinkExperiment is the
// explicit removal path. NextScheduledUpdate is the earliest future schedule timestamp across
// all rules, and IsDue selects features whose update time is strictly before now.
//
// # Serialization
//
// Rules serializes through RuleRecord, a flat struct with a "type" discriminator.
// Unknown discriminators fail with ErrUnknownRuleKind.
package feature
