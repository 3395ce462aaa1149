package revision

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

// Edit operations return a modified copy of the revision. Editing a revision that is in
// review sends it back to draft; editing a published or discarded revision fails with
// ErrInvalidRevisionState. Environment ids are not validated here.

// AddRule appends a rule to the environment's list.
func (r *Revision) AddRule(ctx context.Context, env string, rule feature.Rule, actor Actor, now time.Time) (*Revision, error) {
	if rule == nil {
		return nil, errorf(feature.ErrUnknownRuleKind, "nil rule for %q", env)
	}
	out, err := r.beginEdit(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	rules := out.Rules[env]
	if id := rule.Common().ID; id != "" && indexOf(rules, id) >= 0 {
		return nil, errorf(ErrDuplicateRule, "rule %q already exists in %q", id, env)
	}
	out.Rules[env] = append(rules, feature.CloneRule(rule))
	out.log("add rule", env, rule.Common().ID, actor, now)
	return out, nil
}

// EditRule replaces the rule at index.
func (r *Revision) EditRule(ctx context.Context, env string, index int, rule feature.Rule, actor Actor, now time.Time) (*Revision, error) {
	if rule == nil {
		return nil, errorf(feature.ErrUnknownRuleKind, "nil rule for %q", env)
	}
	out, err := r.beginEdit(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	rules := out.Rules[env]
	if err := checkIndex(rules, env, index); err != nil {
		return nil, err
	}
	if id := rule.Common().ID; id != "" {
		if at := indexOf(rules, id); at >= 0 && at != index {
			return nil, errorf(ErrDuplicateRule, "rule %q already exists in %q", id, env)
		}
	}
	rules[index] = feature.CloneRule(rule)
	out.log("edit rule", env, rule.Common().ID, actor, now)
	return out, nil
}

// DeleteRule removes the rule at index.
func (r *Revision) DeleteRule(ctx context.Context, env string, index int, actor Actor, now time.Time) (*Revision, error) {
	out, err := r.beginEdit(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	rules := out.Rules[env]
	if err := checkIndex(rules, env, index); err != nil {
		return nil, err
	}
	id := rules[index].Common().ID
	out.Rules[env] = slices.Delete(rules, index, index+1)
	out.log("delete rule", env, id, actor, now)
	return out, nil
}

// MoveRule moves the rule at from so it ends up at index to.
func (r *Revision) MoveRule(ctx context.Context, env string, from, to int, actor Actor, now time.Time) (*Revision, error) {
	out, err := r.beginEdit(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	rules := out.Rules[env]
	if err := checkIndex(rules, env, from); err != nil {
		return nil, err
	}
	if err := checkIndex(rules, env, to); err != nil {
		return nil, err
	}
	moved := rules[from]
	rules = slices.Delete(rules, from, from+1)
	out.Rules[env] = slices.Insert(rules, to, moved)
	out.log("move rule", env, fmt.Sprintf("%d -> %d", from, to), actor, now)
	return out, nil
}

// SetDefaultValue replaces the default value.
func (r *Revision) SetDefaultValue(ctx context.Context, value string, actor Actor, now time.Time) (*Revision, error) {
	out, err := r.beginEdit(ctx, actor, now)
	if err != nil {
		return nil, err
	}
	out.DefaultValue = value
	out.log("edit default value", "", value, actor, now)
	return out, nil
}

func (r *Revision) beginEdit(ctx context.Context, actor Actor, now time.Time) (*Revision, error) {
	if !r.Status.Active() {
		return nil, errorf(ErrInvalidRevisionState, "cannot edit %s revision", r.Status)
	}
	out := r.Clone()
	if out.Status != StatusDraft {
		next, err := out.Fire(ctx, EventEdit, actor, "", now)
		if err != nil {
			return nil, err
		}
		out = next
	}
	if out.Rules == nil {
		out.Rules = make(map[string]feature.Rules)
	}
	out.DateUpdated = now
	return out, nil
}

func (r *Revision) log(action, subject, value string, actor Actor, now time.Time) {
	r.Log = append(r.Log, LogEntry{Action: action, Subject: subject, Value: value, Actor: actor, Timestamp: now})
}

func checkIndex(rules feature.Rules, env string, index int) error {
	if index < 0 || index >= len(rules) {
		return errorf(ErrUnknownRule, "no rule at index %d in %q", index, env)
	}
	return nil
}

func indexOf(rules feature.Rules, id string) int {
	return slices.IndexFunc(rules, func(r feature.Rule) bool {
		return r.Common().ID == id
	})
}
