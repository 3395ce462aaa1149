package revision

import (
	"maps"
	"slices"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

// Conflict is a field changed both by the revision and on the live feature since the revision's base.
type Conflict struct {
	Field       string
	Environment string
}

// Result is the content a publish installs. Nil DefaultValue and absent environments mean unchanged.
type Result struct {
	DefaultValue *string
	Rules        map[string]feature.Rules
}

// IsEmpty reports whether the result changes nothing.
func (r Result) IsEmpty() bool {
	return r.DefaultValue == nil && len(r.Rules) == 0
}

// Environments returns the sorted environment ids with rule replacements.
func (r Result) Environments() []string {
	return slices.Sorted(maps.Keys(r.Rules))
}

// MergeResult is the outcome of AutoMerge.
type MergeResult struct {
	Success   bool
	Conflicts []Conflict
	Result    Result
}

// AutoMerge merges the changes rev made relative to base into live.
// A field changed in rev is taken when live still matches base or already matches rev;
// a field that live changed differently is a conflict. Only envIDs are considered, in order.
// Fields where live already equals rev are left out of the result.
func AutoMerge(live, base, rev Content, envIDs []string) MergeResult {
	out := MergeResult{Result: Result{Rules: make(map[string]feature.Rules)}}

	if rev.DefaultValue != base.DefaultValue && rev.DefaultValue != live.DefaultValue {
		if live.DefaultValue == base.DefaultValue {
			v := rev.DefaultValue
			out.Result.DefaultValue = &v
		} else {
			out.Conflicts = append(out.Conflicts, Conflict{Field: "defaultValue"})
		}
	}

	for _, env := range envIDs {
		revRules, ok := rev.Rules[env]
		if !ok {
			continue
		}
		baseRules, liveRules := base.Rules[env], live.Rules[env]
		if revRules.Equal(baseRules) || revRules.Equal(liveRules) {
			continue
		}
		if !liveRules.Equal(baseRules) {
			out.Conflicts = append(out.Conflicts, Conflict{Field: "rules", Environment: env})
			continue
		}
		out.Result.Rules[env] = revRules.Clone()
	}

	out.Success = len(out.Conflicts) == 0
	return out
}

// Unapplied lists the fields rev changed relative to base whose live value differs from rev.
// An empty list means live already carries every change the revision made.
func Unapplied(live, base, rev Content, envIDs []string) []Conflict {
	var out []Conflict
	if rev.DefaultValue != base.DefaultValue && rev.DefaultValue != live.DefaultValue {
		out = append(out, Conflict{Field: "defaultValue"})
	}
	for _, env := range envIDs {
		revRules, ok := rev.Rules[env]
		if !ok || revRules.Equal(base.Rules[env]) {
			continue
		}
		if !revRules.Equal(live.Rules[env]) {
			out = append(out, Conflict{Field: "rules", Environment: env})
		}
	}
	return out
}
