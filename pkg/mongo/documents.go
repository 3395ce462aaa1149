package mongo

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/revision"
)

type envSettingsDoc struct {
	Enabled bool                 `bson:"enabled"`
	Rules   []feature.RuleRecord `bson:"rules"`
}

type legacyDraftDoc struct {
	Active       bool                            `bson:"active"`
	DefaultValue *string                         `bson:"default_value,omitempty"`
	Rules        map[string][]feature.RuleRecord `bson:"rules,omitempty"`
	Comment      string                          `bson:"comment,omitempty"`
	DateCreated  time.Time                       `bson:"date_created"`
	DateUpdated  time.Time                       `bson:"date_updated"`
}

type featureDoc struct {
	ID           string `bson:"id"`
	Organization string `bson:"organization"`
	Description  string `bson:"description,omitempty"`
	Owner        string `bson:"owner,omitempty"`
	Project      string `bson:"project,omitempty"`

	Version     int       `bson:"version"`
	DateCreated time.Time `bson:"date_created"`
	DateUpdated time.Time `bson:"date_updated"`

	ValueType           string                    `bson:"value_type"`
	DefaultValue        string                    `bson:"default_value"`
	EnvironmentSettings map[string]envSettingsDoc `bson:"environment_settings"`
	Prerequisites       []feature.Prerequisite    `bson:"prerequisites,omitempty"`
	JSONSchema          feature.JSONSchema        `bson:"json_schema"`
	Tags                []string                  `bson:"tags,omitempty"`
	Archived            bool                      `bson:"archived"`
	NeverStale          bool                      `bson:"never_stale"`
	CustomFields        map[string]any            `bson:"custom_fields,omitempty"`

	LinkedExperiments   []string   `bson:"linked_experiments,omitempty"`
	NextScheduledUpdate *time.Time `bson:"next_scheduled_update"`
	HasDrafts           bool       `bson:"has_drafts"`

	LegacyDraft         *legacyDraftDoc `bson:"legacy_draft,omitempty"`
	LegacyDraftMigrated bool            `bson:"legacy_draft_migrated"`
}

func encodeRulesMap(in map[string]feature.Rules) (map[string][]feature.RuleRecord, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string][]feature.RuleRecord, len(in))
	for env, rules := range in {
		recs, err := rules.Records()
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", env, err)
		}
		out[env] = recs
	}
	return out, nil
}

func decodeRulesMap(in map[string][]feature.RuleRecord) (map[string]feature.Rules, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]feature.Rules, len(in))
	for env, recs := range in {
		rules, err := feature.RulesFromRecords(recs)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", env, err)
		}
		out[env] = rules
	}
	return out, nil
}

func toFeatureDoc(f *feature.Feature) (*featureDoc, error) {
	d := &featureDoc{
		ID:                  f.ID,
		Organization:        f.Organization,
		Description:         f.Description,
		Owner:               f.Owner,
		Project:             f.Project,
		Version:             f.Version,
		DateCreated:         f.DateCreated,
		DateUpdated:         f.DateUpdated,
		ValueType:           string(f.ValueType),
		DefaultValue:        f.DefaultValue,
		EnvironmentSettings: make(map[string]envSettingsDoc, len(f.EnvironmentSettings)),
		Prerequisites:       f.Prerequisites,
		JSONSchema:          f.JSONSchema,
		Tags:                f.Tags,
		Archived:            f.Archived,
		NeverStale:          f.NeverStale,
		CustomFields:        f.CustomFields,
		LinkedExperiments:   f.LinkedExperiments,
		NextScheduledUpdate: f.NextScheduledUpdate,
		HasDrafts:           f.HasDrafts,
		LegacyDraftMigrated: f.LegacyDraftMigrated,
	}
	for env, s := range f.EnvironmentSettings {
		recs, err := s.Rules.Records()
		if err != nil {
			return nil, errors.Join(ErrEncoding, fmt.Errorf("environment %s: %w", env, err))
		}
		d.EnvironmentSettings[env] = envSettingsDoc{Enabled: s.Enabled, Rules: recs}
	}
	if ld := f.LegacyDraft; ld != nil {
		rules, err := encodeRulesMap(ld.Rules)
		if err != nil {
			return nil, errors.Join(ErrEncoding, err)
		}
		d.LegacyDraft = &legacyDraftDoc{
			Active:       ld.Active,
			DefaultValue: ld.DefaultValue,
			Rules:        rules,
			Comment:      ld.Comment,
			DateCreated:  ld.DateCreated,
			DateUpdated:  ld.DateUpdated,
		}
	}
	return d, nil
}

func (d *featureDoc) toFeature() (*feature.Feature, error) {
	f := &feature.Feature{
		ID:                  d.ID,
		Organization:        d.Organization,
		Description:         d.Description,
		Owner:               d.Owner,
		Project:             d.Project,
		Version:             d.Version,
		DateCreated:         d.DateCreated,
		DateUpdated:         d.DateUpdated,
		ValueType:           feature.ValueType(d.ValueType),
		DefaultValue:        d.DefaultValue,
		EnvironmentSettings: make(map[string]feature.EnvironmentSettings, len(d.EnvironmentSettings)),
		Prerequisites:       d.Prerequisites,
		JSONSchema:          d.JSONSchema,
		Tags:                d.Tags,
		Archived:            d.Archived,
		NeverStale:          d.NeverStale,
		CustomFields:        d.CustomFields,
		LinkedExperiments:   d.LinkedExperiments,
		NextScheduledUpdate: d.NextScheduledUpdate,
		HasDrafts:           d.HasDrafts,
		LegacyDraftMigrated: d.LegacyDraftMigrated,
	}
	for env, s := range d.EnvironmentSettings {
		rules, err := feature.RulesFromRecords(s.Rules)
		if err != nil {
			return nil, errors.Join(ErrEncoding, fmt.Errorf("feature %s environment %s: %w", d.ID, env, err))
		}
		f.EnvironmentSettings[env] = feature.EnvironmentSettings{Enabled: s.Enabled, Rules: rules}
	}
	if ld := d.LegacyDraft; ld != nil {
		rules, err := decodeRulesMap(ld.Rules)
		if err != nil {
			return nil, errors.Join(ErrEncoding, err)
		}
		f.LegacyDraft = &feature.LegacyDraft{
			Active:       ld.Active,
			DefaultValue: ld.DefaultValue,
			Rules:        rules,
			Comment:      ld.Comment,
			DateCreated:  ld.DateCreated,
			DateUpdated:  ld.DateUpdated,
		}
	}
	return f, nil
}

type actorDoc struct {
	ID    string `bson:"id"`
	Name  string `bson:"name,omitempty"`
	Email string `bson:"email,omitempty"`
}

type logEntryDoc struct {
	Action    string    `bson:"action"`
	Subject   string    `bson:"subject,omitempty"`
	Value     string    `bson:"value,omitempty"`
	Actor     actorDoc  `bson:"actor"`
	Timestamp time.Time `bson:"timestamp"`
}

type revisionDoc struct {
	Organization  string                          `bson:"organization"`
	FeatureID     string                          `bson:"feature_id"`
	Version       int                             `bson:"version"`
	BaseVersion   int                             `bson:"base_version"`
	Status        string                          `bson:"status"`
	Comment       string                          `bson:"comment,omitempty"`
	DefaultValue  string                          `bson:"default_value"`
	Rules         map[string][]feature.RuleRecord `bson:"rules"`
	CreatedBy     actorDoc                        `bson:"created_by"`
	DateCreated   time.Time                       `bson:"date_created"`
	DateUpdated   time.Time                       `bson:"date_updated"`
	PublishedBy   *actorDoc                       `bson:"published_by,omitempty"`
	DatePublished *time.Time                      `bson:"date_published,omitempty"`
	Log           []logEntryDoc                   `bson:"log"`
}

func toActorDoc(a revision.Actor) actorDoc {
	return actorDoc{ID: a.ID, Name: a.Name, Email: a.Email}
}

func (a actorDoc) toActor() revision.Actor {
	return revision.Actor{ID: a.ID, Name: a.Name, Email: a.Email}
}

func toLogEntryDoc(e revision.LogEntry) logEntryDoc {
	return logEntryDoc{Action: e.Action, Subject: e.Subject, Value: e.Value, Actor: toActorDoc(e.Actor), Timestamp: e.Timestamp}
}

func toRevisionDoc(r *revision.Revision) (*revisionDoc, error) {
	rules, err := encodeRulesMap(r.Rules)
	if err != nil {
		return nil, errors.Join(ErrEncoding, err)
	}
	d := &revisionDoc{
		Organization:  r.Organization,
		FeatureID:     r.FeatureID,
		Version:       r.Version,
		BaseVersion:   r.BaseVersion,
		Status:        string(r.Status),
		Comment:       r.Comment,
		DefaultValue:  r.DefaultValue,
		Rules:         rules,
		CreatedBy:     toActorDoc(r.CreatedBy),
		DateCreated:   r.DateCreated,
		DateUpdated:   r.DateUpdated,
		DatePublished: r.DatePublished,
		Log:           make([]logEntryDoc, 0, len(r.Log)),
	}
	if r.PublishedBy != nil {
		a := toActorDoc(*r.PublishedBy)
		d.PublishedBy = &a
	}
	for _, e := range r.Log {
		d.Log = append(d.Log, toLogEntryDoc(e))
	}
	return d, nil
}

func (d *revisionDoc) toRevision() (*revision.Revision, error) {
	rules, err := decodeRulesMap(d.Rules)
	if err != nil {
		return nil, errors.Join(ErrEncoding, fmt.Errorf("revision %s@%d: %w", d.FeatureID, d.Version, err))
	}
	if rules == nil {
		rules = map[string]feature.Rules{}
	}
	r := &revision.Revision{
		Organization:  d.Organization,
		FeatureID:     d.FeatureID,
		Version:       d.Version,
		BaseVersion:   d.BaseVersion,
		Status:        revision.Status(d.Status),
		Comment:       d.Comment,
		DefaultValue:  d.DefaultValue,
		Rules:         rules,
		CreatedBy:     d.CreatedBy.toActor(),
		DateCreated:   d.DateCreated,
		DateUpdated:   d.DateUpdated,
		DatePublished: d.DatePublished,
	}
	if d.PublishedBy != nil {
		a := d.PublishedBy.toActor()
		r.PublishedBy = &a
	}
	for _, e := range d.Log {
		r.Log = append(r.Log, revision.LogEntry{
			Action:    e.Action,
			Subject:   e.Subject,
			Value:     e.Value,
			Actor:     e.Actor.toActor(),
			Timestamp: e.Timestamp,
		})
	}
	return r, nil
}
