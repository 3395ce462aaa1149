package feature

import (
	"maps"
	"slices"
	"time"
)

// ValueType is the type of value a feature serves.
type ValueType string

const (
	ValueTypeBoolean ValueType = "boolean"
	ValueTypeString  ValueType = "string"
	ValueTypeNumber  ValueType = "number"
	ValueTypeJSON    ValueType = "json"
)

// Valid reports whether the value type is one of the supported types.
func (v ValueType) Valid() bool {
	switch v {
	case ValueTypeBoolean, ValueTypeString, ValueTypeNumber, ValueTypeJSON:
		return true
	}
	return false
}

// Feature is a versioned configuration entity whose value varies by environment and targeting rule.
// Instances are treated as immutable snapshots: operations return new values instead of mutating.
type Feature struct {
	ID           string `json:"id"`
	Organization string `json:"organization"`
	Description  string `json:"description,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Project      string `json:"project,omitempty"`

	// Version always equals the version of the currently published revision.
	Version     int       `json:"version"`
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`

	ValueType           ValueType                      `json:"value_type"`
	DefaultValue        string                         `json:"default_value"`
	EnvironmentSettings map[string]EnvironmentSettings `json:"environment_settings"`
	Prerequisites       []Prerequisite                 `json:"prerequisites,omitempty"`
	JSONSchema          JSONSchema                     `json:"json_schema,omitzero"`
	Tags                []string                       `json:"tags,omitempty"`
	Archived            bool                           `json:"archived"`
	NeverStale          bool                           `json:"never_stale"`
	CustomFields        map[string]any                 `json:"custom_fields,omitempty"`

	// Derived fields, recomputed by the service on every write.
	LinkedExperiments   []string   `json:"linked_experiments,omitempty"`
	NextScheduledUpdate *time.Time `json:"next_scheduled_update,omitempty"`
	HasDrafts           bool       `json:"has_drafts"`

	// LegacyDraft is the single-draft model used before revisions existed.
	LegacyDraft         *LegacyDraft `json:"legacy_draft,omitempty"`
	LegacyDraftMigrated bool         `json:"legacy_draft_migrated"`
}

// EnvironmentSettings holds the per-environment state of a feature.
type EnvironmentSettings struct {
	Enabled bool  `json:"enabled"`
	Rules   Rules `json:"rules"`
}

// Clone returns a deep copy of the settings.
func (s EnvironmentSettings) Clone() EnvironmentSettings {
	return EnvironmentSettings{Enabled: s.Enabled, Rules: s.Rules.Clone()}
}

// Prerequisite gates a feature on the evaluated value of another feature.
type Prerequisite struct {
	ID        string `json:"id"`
	Condition string `json:"condition"`
}

// JSONSchema validates json-typed feature values.
type JSONSchema struct {
	Enabled bool      `json:"enabled"`
	Schema  string    `json:"schema,omitempty"`
	Date    time.Time `json:"date,omitzero"`
}

// LegacyDraft is the pre-revision draft stored inline on the feature.
type LegacyDraft struct {
	Active       bool             `json:"active"`
	DefaultValue *string          `json:"default_value,omitempty"`
	Rules        map[string]Rules `json:"rules,omitempty"`
	Comment      string           `json:"comment,omitempty"`
	DateCreated  time.Time        `json:"date_created,omitzero"`
	DateUpdated  time.Time        `json:"date_updated,omitzero"`
}

// Clone returns a deep copy of the feature.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	c := *f
	c.EnvironmentSettings = CloneSettings(f.EnvironmentSettings)
	c.Prerequisites = slices.Clone(f.Prerequisites)
	c.Tags = slices.Clone(f.Tags)
	c.CustomFields = maps.Clone(f.CustomFields)
	c.LinkedExperiments = slices.Clone(f.LinkedExperiments)
	if f.NextScheduledUpdate != nil {
		t := *f.NextScheduledUpdate
		c.NextScheduledUpdate = &t
	}
	if f.LegacyDraft != nil {
		d := *f.LegacyDraft
		if d.DefaultValue != nil {
			v := *d.DefaultValue
			d.DefaultValue = &v
		}
		if d.Rules != nil {
			d.Rules = make(map[string]Rules, len(f.LegacyDraft.Rules))
			for env, rules := range f.LegacyDraft.Rules {
				d.Rules[env] = rules.Clone()
			}
		}
		c.LegacyDraft = &d
	}
	return &c
}

// HasTag reports whether the feature carries the given tag.
func (f *Feature) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// Validate checks the fields required for persisting a feature.
func (f *Feature) Validate() error {
	if f == nil {
		return ErrInvalidFeature
	}
	if f.ID == "" {
		return errorf(ErrInvalidFeature, "feature id cannot be empty")
	}
	if f.Organization == "" {
		return errorf(ErrInvalidFeature, "organization cannot be empty")
	}
	if !f.ValueType.Valid() {
		return errorf(ErrInvalidFeature, "unsupported value type %q", f.ValueType)
	}
	for env, settings := range f.EnvironmentSettings {
		seen := make(map[string]struct{}, len(settings.Rules))
		for _, r := range settings.Rules {
			id := r.Common().ID
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				return errorf(ErrInvalidFeature, "duplicate rule id %q in environment %q", id, env)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// CloneSettings deep-copies an environment settings map. A nil map stays nil.
func CloneSettings(in map[string]EnvironmentSettings) map[string]EnvironmentSettings {
	if in == nil {
		return nil
	}
	out := make(map[string]EnvironmentSettings, len(in))
	for env, s := range in {
		out[env] = s.Clone()
	}
	return out
}
