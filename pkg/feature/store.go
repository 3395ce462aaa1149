package feature

import (
	"context"
	"slices"
	"time"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Project         string
	Tag             string
	IDs             []string
	ExperimentID    string
	IncludeArchived bool
}

// Store persists features. All lookups are scoped by organization.
//
// The interface is organized into two groups:
//   - Read methods: Get, List, FindDue
//   - Write methods: Create, Update, Delete
type Store interface {
	// Create inserts a new feature. Returns ErrFeatureExists on id collision.
	Create(ctx context.Context, f *Feature) error

	// Get returns the feature or ErrFeatureNotFound.
	Get(ctx context.Context, org, id string) (*Feature, error)

	// List returns the organization's features matching the filter.
	List(ctx context.Context, org string, filter Filter) ([]*Feature, error)

	// Update replaces the stored feature only if its version still equals expectedVersion.
	// Returns ErrVersionConflict otherwise and ErrFeatureNotFound if it does not exist.
	Update(ctx context.Context, next *Feature, expectedVersion int) error

	// Delete removes the feature. Returns ErrFeatureNotFound if it does not exist.
	Delete(ctx context.Context, org, id string) error

	// FindDue returns features of any organization whose next scheduled update is before now.
	FindDue(ctx context.Context, now time.Time) ([]*Feature, error)
}

// Matches reports whether the feature passes the filter.
func (flt Filter) Matches(f *Feature) bool {
	if !flt.IncludeArchived && f.Archived {
		return false
	}
	if flt.Project != "" && f.Project != flt.Project {
		return false
	}
	if flt.Tag != "" && !f.HasTag(flt.Tag) {
		return false
	}
	if len(flt.IDs) > 0 && !slices.Contains(flt.IDs, f.ID) {
		return false
	}
	if flt.ExperimentID != "" && !slices.Contains(f.LinkedExperiments, flt.ExperimentID) {
		return false
	}
	return true
}
