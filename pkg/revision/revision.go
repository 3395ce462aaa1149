package revision

import (
	"maps"
	"slices"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

// Status is the lifecycle state of a revision.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingReview    Status = "pending-review"
	StatusChangesRequested Status = "changes-requested"
	StatusApproved         Status = "approved"
	StatusPublished        Status = "published"
	StatusDiscarded        Status = "discarded"
)

// Active reports whether the revision can still be edited, reviewed or published.
func (s Status) Active() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusChangesRequested, StatusApproved:
		return true
	}
	return false
}

// Actor identifies who performed an action.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// LogEntry records one action taken on a revision.
type LogEntry struct {
	Action    string    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	Value     string    `json:"value,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// Revision is a proposed or historical set of rules and default value for a feature.
// Version 1 is the revision created with the feature.
type Revision struct {
	Organization string `json:"organization"`
	FeatureID    string `json:"feature_id"`
	Version      int    `json:"version"`

	// BaseVersion is the live feature version the revision was branched from.
	BaseVersion int    `json:"base_version"`
	Status      Status `json:"status"`
	Comment     string `json:"comment,omitempty"`

	DefaultValue string                   `json:"default_value"`
	Rules        map[string]feature.Rules `json:"rules"`

	CreatedBy     Actor      `json:"created_by"`
	DateCreated   time.Time  `json:"date_created"`
	DateUpdated   time.Time  `json:"date_updated"`
	PublishedBy   *Actor     `json:"published_by,omitempty"`
	DatePublished *time.Time `json:"date_published,omitempty"`

	Log []LogEntry `json:"log,omitempty"`
}

// Content is the mergeable part of a revision or live feature.
type Content struct {
	DefaultValue string
	Rules        map[string]feature.Rules
}

// Clone returns a deep copy of the revision.
func (r *Revision) Clone() *Revision {
	if r == nil {
		return nil
	}
	c := *r
	c.Rules = cloneRules(r.Rules)
	c.Log = slices.Clone(r.Log)
	if r.PublishedBy != nil {
		a := *r.PublishedBy
		c.PublishedBy = &a
	}
	if r.DatePublished != nil {
		t := *r.DatePublished
		c.DatePublished = &t
	}
	return &c
}

// Content returns the revision's default value and rules.
func (r *Revision) Content() Content {
	return Content{DefaultValue: r.DefaultValue, Rules: cloneRules(r.Rules)}
}

// ContentOf returns the live default value and per-environment rules of a feature.
func ContentOf(f *feature.Feature) Content {
	rules := make(map[string]feature.Rules, len(f.EnvironmentSettings))
	for env, s := range f.EnvironmentSettings {
		rules[env] = s.Rules.Clone()
	}
	return Content{DefaultValue: f.DefaultValue, Rules: rules}
}

// NewInitial builds the published revision that accompanies a newly created feature.
func NewInitial(f *feature.Feature, actor Actor, now time.Time) *Revision {
	content := ContentOf(f)
	published := actor
	at := now
	return &Revision{
		Organization:  f.Organization,
		FeatureID:     f.ID,
		Version:       f.Version,
		BaseVersion:   f.Version,
		Status:        StatusPublished,
		Comment:       "New feature",
		DefaultValue:  content.DefaultValue,
		Rules:         content.Rules,
		CreatedBy:     actor,
		DateCreated:   now,
		DateUpdated:   now,
		PublishedBy:   &published,
		DatePublished: &at,
		Log:           []LogEntry{{Action: "new revision", Actor: actor, Timestamp: now}},
	}
}

// NewDraft branches a draft with the given version from the live feature.
// live may carry synthesized environments; their rules are copied like stored ones.
func NewDraft(live *feature.Feature, version int, actor Actor, now time.Time) *Revision {
	content := ContentOf(live)
	return &Revision{
		Organization: live.Organization,
		FeatureID:    live.ID,
		Version:      version,
		BaseVersion:  live.Version,
		Status:       StatusDraft,
		DefaultValue: content.DefaultValue,
		Rules:        content.Rules,
		CreatedBy:    actor,
		DateCreated:  now,
		DateUpdated:  now,
		Log:          []LogEntry{{Action: "new revision", Actor: actor, Timestamp: now}},
	}
}

func cloneRules(in map[string]feature.Rules) map[string]feature.Rules {
	if in == nil {
		return nil
	}
	out := make(map[string]feature.Rules, len(in))
	for env, rules := range in {
		out[env] = rules.Clone()
	}
	return out
}

// Environments returns the sorted environment ids the revision carries rules for.
func (r *Revision) Environments() []string {
	return slices.Sorted(maps.Keys(r.Rules))
}
