package feature

import (
	"encoding/json"
	"slices"
	"time"
)

// RuleKind is the discriminator of a rule variant.
type RuleKind string

const (
	KindForce         RuleKind = "force"
	KindRollout       RuleKind = "rollout"
	KindExperiment    RuleKind = "experiment"
	KindExperimentRef RuleKind = "experiment-ref"
	KindSafeRollout   RuleKind = "safe-rollout"
)

// SafeRolloutStatus mirrors the status a safe-rollout rule declares for its rollout.
type SafeRolloutStatus string

const (
	SafeRolloutRunning    SafeRolloutStatus = "running"
	SafeRolloutRolledBack SafeRolloutStatus = "rolled-back"
	SafeRolloutReleased   SafeRolloutStatus = "released"
	SafeRolloutStopped    SafeRolloutStatus = "stopped"
)

// Rule is one targeting unit inside an environment's ordered rule list.
// The set of implementations is closed: ForceRule, RolloutRule, ExperimentRule,
// ExperimentRefRule and SafeRolloutRule.
type Rule interface {
	Kind() RuleKind
	Common() RuleBase
	withCommon(RuleBase) Rule
}

// ScheduleRule toggles a rule at a point in time. A nil timestamp applies immediately.
type ScheduleRule struct {
	Timestamp *time.Time `json:"timestamp" bson:"timestamp"`
	Enabled   bool       `json:"enabled" bson:"enabled"`
}

// RuleBase holds the fields shared by every rule variant.
type RuleBase struct {
	ID            string         `json:"id" bson:"id"`
	Description   string         `json:"description,omitempty" bson:"description,omitempty"`
	Condition     string         `json:"condition,omitempty" bson:"condition,omitempty"`
	Enabled       bool           `json:"enabled" bson:"enabled"`
	ScheduleRules []ScheduleRule `json:"schedule_rules,omitempty" bson:"schedule_rules,omitempty"`
	SavedGroups   []string       `json:"saved_groups,omitempty" bson:"saved_groups,omitempty"`
}

func (b RuleBase) clone() RuleBase {
	b.SavedGroups = slices.Clone(b.SavedGroups)
	if b.ScheduleRules != nil {
		out := make([]ScheduleRule, len(b.ScheduleRules))
		for i, s := range b.ScheduleRules {
			if s.Timestamp != nil {
				t := *s.Timestamp
				s.Timestamp = &t
			}
			out[i] = s
		}
		b.ScheduleRules = out
	}
	return b
}

// ForceRule serves a fixed value to matching users.
type ForceRule struct {
	RuleBase
	Value string
}

func (r ForceRule) Kind() RuleKind   { return KindForce }
func (r ForceRule) Common() RuleBase { return r.RuleBase }
func (r ForceRule) withCommon(b RuleBase) Rule {
	r.RuleBase = b
	return r
}

// RolloutRule serves a value to a percentage of matching users.
type RolloutRule struct {
	RuleBase
	Value         string
	Coverage      float64
	HashAttribute string
}

func (r RolloutRule) Kind() RuleKind   { return KindRollout }
func (r RolloutRule) Common() RuleBase { return r.RuleBase }
func (r RolloutRule) withCommon(b RuleBase) Rule {
	r.RuleBase = b
	return r
}

// Variation is one weighted value of an experiment.
type Variation struct {
	ID     string  `json:"id,omitempty" bson:"id,omitempty"`
	Value  string  `json:"value" bson:"value"`
	Weight float64 `json:"weight" bson:"weight"`
	Name   string  `json:"name,omitempty" bson:"name,omitempty"`
}

// ExperimentRule is an experiment defined inline on the rule.
type ExperimentRule struct {
	RuleBase
	TrackingKey   string
	HashAttribute string
	Coverage      float64
	Values        []Variation
}

func (r ExperimentRule) Kind() RuleKind   { return KindExperiment }
func (r ExperimentRule) Common() RuleBase { return r.RuleBase }
func (r ExperimentRule) withCommon(b RuleBase) Rule {
	r.RuleBase = b
	return r
}

// ExperimentRefRule links the rule to a standalone experiment entity.
type ExperimentRefRule struct {
	RuleBase
	ExperimentID string
	Variations   []Variation
}

func (r ExperimentRefRule) Kind() RuleKind   { return KindExperimentRef }
func (r ExperimentRefRule) Common() RuleBase { return r.RuleBase }
func (r ExperimentRefRule) withCommon(b RuleBase) Rule {
	r.RuleBase = b
	return r
}

// SafeRolloutRule references a guarded staged rollout entity.
type SafeRolloutRule struct {
	RuleBase
	SafeRolloutID  string
	Status         SafeRolloutStatus
	ControlValue   string
	VariationValue string
	HashAttribute  string
}

func (r SafeRolloutRule) Kind() RuleKind   { return KindSafeRollout }
func (r SafeRolloutRule) Common() RuleBase { return r.RuleBase }
func (r SafeRolloutRule) withCommon(b RuleBase) Rule {
	r.RuleBase = b
	return r
}

// WithEnabled returns a copy of the rule with its enabled flag replaced.
func WithEnabled(r Rule, enabled bool) Rule {
	b := r.Common().clone()
	b.Enabled = enabled
	return r.withCommon(b)
}

// CloneRule deep-copies a rule.
func CloneRule(r Rule) Rule {
	switch v := r.(type) {
	case ForceRule:
		v.RuleBase = v.RuleBase.clone()
		return v
	case RolloutRule:
		v.RuleBase = v.RuleBase.clone()
		return v
	case ExperimentRule:
		v.RuleBase = v.RuleBase.clone()
		v.Values = slices.Clone(v.Values)
		return v
	case ExperimentRefRule:
		v.RuleBase = v.RuleBase.clone()
		v.Variations = slices.Clone(v.Variations)
		return v
	case SafeRolloutRule:
		v.RuleBase = v.RuleBase.clone()
		return v
	}
	return r
}

// Rules is an ordered rule list. It serializes as a list of RuleRecord values.
type Rules []Rule

// Clone deep-copies the rule list. A nil list stays nil.
func (rs Rules) Clone() Rules {
	if rs == nil {
		return nil
	}
	out := make(Rules, len(rs))
	for i, r := range rs {
		out[i] = CloneRule(r)
	}
	return out
}

// Equal reports whether both lists serialize identically.
func (rs Rules) Equal(other Rules) bool {
	a, errA := json.Marshal(rs)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && string(a) == string(b)
}

// RuleRecord is the flat, discriminated form of a rule used for serialization.
type RuleRecord struct {
	Type           RuleKind          `json:"type" bson:"type"`
	RuleBase       `bson:",inline"`
	Value          string            `json:"value,omitempty" bson:"value,omitempty"`
	Coverage       float64           `json:"coverage,omitempty" bson:"coverage,omitempty"`
	HashAttribute  string            `json:"hash_attribute,omitempty" bson:"hash_attribute,omitempty"`
	TrackingKey    string            `json:"tracking_key,omitempty" bson:"tracking_key,omitempty"`
	Values         []Variation       `json:"values,omitempty" bson:"values,omitempty"`
	ExperimentID   string            `json:"experiment_id,omitempty" bson:"experiment_id,omitempty"`
	Variations     []Variation       `json:"variations,omitempty" bson:"variations,omitempty"`
	SafeRolloutID  string            `json:"safe_rollout_id,omitempty" bson:"safe_rollout_id,omitempty"`
	Status         SafeRolloutStatus `json:"status,omitempty" bson:"status,omitempty"`
	ControlValue   string            `json:"control_value,omitempty" bson:"control_value,omitempty"`
	VariationValue string            `json:"variation_value,omitempty" bson:"variation_value,omitempty"`
}

// EncodeRule flattens a rule into its record form.
func EncodeRule(r Rule) (RuleRecord, error) {
	if r == nil {
		return RuleRecord{}, errorf(ErrUnknownRuleKind, "nil rule")
	}
	rec := RuleRecord{Type: r.Kind(), RuleBase: r.Common()}
	switch v := r.(type) {
	case ForceRule:
		rec.Value = v.Value
	case RolloutRule:
		rec.Value = v.Value
		rec.Coverage = v.Coverage
		rec.HashAttribute = v.HashAttribute
	case ExperimentRule:
		rec.TrackingKey = v.TrackingKey
		rec.HashAttribute = v.HashAttribute
		rec.Coverage = v.Coverage
		rec.Values = v.Values
	case ExperimentRefRule:
		rec.ExperimentID = v.ExperimentID
		rec.Variations = v.Variations
	case SafeRolloutRule:
		rec.SafeRolloutID = v.SafeRolloutID
		rec.Status = v.Status
		rec.ControlValue = v.ControlValue
		rec.VariationValue = v.VariationValue
		rec.HashAttribute = v.HashAttribute
	default:
		return RuleRecord{}, errorf(ErrUnknownRuleKind, "%T", r)
	}
	return rec, nil
}

// DecodeRule rebuilds the typed rule from its record form.
func DecodeRule(rec RuleRecord) (Rule, error) {
	switch rec.Type {
	case KindForce:
		return ForceRule{RuleBase: rec.RuleBase, Value: rec.Value}, nil
	case KindRollout:
		return RolloutRule{
			RuleBase:      rec.RuleBase,
			Value:         rec.Value,
			Coverage:      rec.Coverage,
			HashAttribute: rec.HashAttribute,
		}, nil
	case KindExperiment:
		return ExperimentRule{
			RuleBase:      rec.RuleBase,
			TrackingKey:   rec.TrackingKey,
			HashAttribute: rec.HashAttribute,
			Coverage:      rec.Coverage,
			Values:        rec.Values,
		}, nil
	case KindExperimentRef:
		return ExperimentRefRule{
			RuleBase:     rec.RuleBase,
			ExperimentID: rec.ExperimentID,
			Variations:   rec.Variations,
		}, nil
	case KindSafeRollout:
		return SafeRolloutRule{
			RuleBase:       rec.RuleBase,
			SafeRolloutID:  rec.SafeRolloutID,
			Status:         rec.Status,
			ControlValue:   rec.ControlValue,
			VariationValue: rec.VariationValue,
			HashAttribute:  rec.HashAttribute,
		}, nil
	}
	return nil, errorf(ErrUnknownRuleKind, "%q", rec.Type)
}

// Records converts the list to record form.
func (rs Rules) Records() ([]RuleRecord, error) {
	out := make([]RuleRecord, 0, len(rs))
	for _, r := range rs {
		rec, err := EncodeRule(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// RulesFromRecords converts records back to typed rules.
func RulesFromRecords(recs []RuleRecord) (Rules, error) {
	out := make(Rules, 0, len(recs))
	for _, rec := range recs {
		r, err := DecodeRule(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (rs Rules) MarshalJSON() ([]byte, error) {
	recs, err := rs.Records()
	if err != nil {
		return nil, err
	}
	return json.Marshal(recs)
}

func (rs *Rules) UnmarshalJSON(data []byte) error {
	var recs []RuleRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return err
	}
	decoded, err := RulesFromRecords(recs)
	if err != nil {
		return err
	}
	*rs = decoded
	return nil
}
