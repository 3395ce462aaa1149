package notify

import (
	"cmp"
	"slices"
	"time"

	"github.com/dmitrymomot/flagkit/pkg/feature"
)

// Action names a committed feature mutation.
type Action string

const (
	ActionCreated         Action = "created"
	ActionUpdated         Action = "updated"
	ActionDeleted         Action = "deleted"
	ActionPublished       Action = "published"
	ActionTagRemoved      Action = "tag-removed"
	ActionProjectRemoved  Action = "project-removed"
	ActionScheduledUpdate Action = "scheduled-update"
)

// Change describes one committed mutation of one feature.
// Previous is nil for creations and Current is nil for deletions.
type Change struct {
	Action       Action
	Organization string
	FeatureID    string

	// Environments lists the organization's environment ids at the time of the change.
	Environments []string

	Previous *feature.Feature
	Current  *feature.Feature
	Actor    string
	At       time.Time
}

// Sync mirrors a feature change to the organization's external experimentation system.
type Sync struct {
	Action       Action
	Organization string
	Feature      *feature.Feature
}

// Effects are the post-commit side effects of a mutation, run by a Dispatcher.
type Effects struct {
	Changes []Change
	Syncs   []Sync
}

// IsEmpty reports whether there is nothing to dispatch.
func (e Effects) IsEmpty() bool {
	return len(e.Changes) == 0 && len(e.Syncs) == 0
}

// Merge returns the effects of both e and other, e first.
func (e Effects) Merge(other Effects) Effects {
	return Effects{
		Changes: append(slices.Clone(e.Changes), other.Changes...),
		Syncs:   append(slices.Clone(e.Syncs), other.Syncs...),
	}
}

// Partition identifies one serving-cache entry: the SDK payload of an
// organization's environment for one project.
type Partition struct {
	Organization string `json:"organization"`
	Environment  string `json:"environment"`
	Project      string `json:"project"`
}

// AffectedPartitions returns the sorted cache partitions whose served payload
// differs between c.Previous and c.Current.
//
// A created feature touches every environment of its project, a deleted one every
// environment of its former project. For updates only environments whose served
// view changed are returned; a change to a field served in every environment, such
// as the default value or the project, touches them all. A project move touches
// both the old and the new project.
func AffectedPartitions(c Change) []Partition {
	set := make(map[Partition]struct{})
	add := func(env, project string) {
		set[Partition{Organization: c.Organization, Environment: env, Project: project}] = struct{}{}
	}

	switch {
	case c.Previous == nil && c.Current == nil:
		return nil
	case c.Previous == nil:
		for _, env := range c.Environments {
			add(env, c.Current.Project)
		}
	case c.Current == nil:
		for _, env := range c.Environments {
			add(env, c.Previous.Project)
		}
	default:
		global := globalViewChanged(c.Previous, c.Current)
		for _, env := range c.Environments {
			if global || envViewChanged(c.Previous.EnvironmentSettings[env], c.Current.EnvironmentSettings[env]) {
				add(env, c.Previous.Project)
				add(env, c.Current.Project)
			}
		}
	}

	out := make([]Partition, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePartitions)
	return out
}

func comparePartitions(a, b Partition) int {
	return cmp.Or(
		cmp.Compare(a.Organization, b.Organization),
		cmp.Compare(a.Environment, b.Environment),
		cmp.Compare(a.Project, b.Project),
	)
}

func globalViewChanged(prev, cur *feature.Feature) bool {
	return prev.DefaultValue != cur.DefaultValue ||
		prev.ValueType != cur.ValueType ||
		prev.Archived != cur.Archived ||
		prev.Project != cur.Project ||
		!slices.Equal(prev.Prerequisites, cur.Prerequisites)
}

func envViewChanged(prev, cur feature.EnvironmentSettings) bool {
	return prev.Enabled != cur.Enabled || !prev.Rules.Equal(cur.Rules)
}

// union returns the sorted distinct non-empty values of a and b.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(slices.Clone(a), b...) {
		if v != "" {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
