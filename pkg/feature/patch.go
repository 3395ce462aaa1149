package feature

import (
	"maps"
	"slices"
	"time"
)

// Patch is an explicit set of field changes for a feature. Nil fields are left unchanged.
// EnvironmentSettings entries replace the named environments only; other environments keep
// their stored settings.
type Patch struct {
	Description         *string
	Owner               *string
	Project             *string
	DefaultValue        *string
	EnvironmentSettings map[string]EnvironmentSettings
	Prerequisites       *[]Prerequisite
	JSONSchema          *JSONSchema
	Tags                *[]string
	Archived            *bool
	NeverStale          *bool
	CustomFields        map[string]any
	Version             *int
	LinkedExperiments   *[]string
	HasDrafts           *bool
	LegacyDraftMigrated *bool

	// NextScheduledUpdate is applied when SetNextScheduledUpdate is true; nil clears it.
	NextScheduledUpdate    *time.Time
	SetNextScheduledUpdate bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Description == nil && p.Owner == nil && p.Project == nil && p.DefaultValue == nil &&
		len(p.EnvironmentSettings) == 0 && p.Prerequisites == nil && p.JSONSchema == nil &&
		p.Tags == nil && p.Archived == nil && p.NeverStale == nil && p.CustomFields == nil &&
		p.Version == nil && p.LinkedExperiments == nil && p.HasDrafts == nil &&
		p.LegacyDraftMigrated == nil && !p.SetNextScheduledUpdate
}

// TouchesEnvironments reports whether applying the patch can change any served value.
func (p Patch) TouchesEnvironments() bool {
	return len(p.EnvironmentSettings) > 0
}

// Apply returns a new snapshot with the patch applied. The receiver is not modified.
func (f *Feature) Apply(p Patch) *Feature {
	next := f.Clone()
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Owner != nil {
		next.Owner = *p.Owner
	}
	if p.Project != nil {
		next.Project = *p.Project
	}
	if p.DefaultValue != nil {
		next.DefaultValue = *p.DefaultValue
	}
	if len(p.EnvironmentSettings) > 0 {
		if next.EnvironmentSettings == nil {
			next.EnvironmentSettings = make(map[string]EnvironmentSettings, len(p.EnvironmentSettings))
		}
		for env, settings := range p.EnvironmentSettings {
			next.EnvironmentSettings[env] = settings.Clone()
		}
	}
	if p.Prerequisites != nil {
		next.Prerequisites = slices.Clone(*p.Prerequisites)
	}
	if p.JSONSchema != nil {
		next.JSONSchema = *p.JSONSchema
	}
	if p.Tags != nil {
		next.Tags = slices.Clone(*p.Tags)
	}
	if p.Archived != nil {
		next.Archived = *p.Archived
	}
	if p.NeverStale != nil {
		next.NeverStale = *p.NeverStale
	}
	if p.CustomFields != nil {
		next.CustomFields = maps.Clone(p.CustomFields)
	}
	if p.Version != nil {
		next.Version = *p.Version
	}
	if p.LinkedExperiments != nil {
		next.LinkedExperiments = slices.Clone(*p.LinkedExperiments)
	}
	if p.HasDrafts != nil {
		next.HasDrafts = *p.HasDrafts
	}
	if p.LegacyDraftMigrated != nil {
		next.LegacyDraftMigrated = *p.LegacyDraftMigrated
	}
	if p.SetNextScheduledUpdate {
		next.NextScheduledUpdate = nil
		if p.NextScheduledUpdate != nil {
			t := *p.NextScheduledUpdate
			next.NextScheduledUpdate = &t
		}
	}
	return next
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
