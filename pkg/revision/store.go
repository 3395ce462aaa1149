package revision

import (
	"context"
	"time"
)

// Store persists revisions keyed by (organization, feature, version).
type Store interface {
	// Create inserts a revision. Returns ErrRevisionExists if the version is taken.
	Create(ctx context.Context, r *Revision) error

	// Get returns the revision or ErrRevisionNotFound.
	Get(ctx context.Context, org, featureID string, version int) (*Revision, error)

	// List returns every revision of the feature ordered by version.
	List(ctx context.Context, org, featureID string) ([]*Revision, error)

	// Update replaces a revision whose stored status is still active.
	// Returns ErrInvalidRevisionState when the stored revision is published or discarded.
	Update(ctx context.Context, r *Revision) error

	// MarkPublished sets the revision's status to published only if it is still active.
	MarkPublished(ctx context.Context, org, featureID string, version int, by Actor, comment string, at time.Time) error

	// DeleteAll removes every revision of the feature.
	DeleteAll(ctx context.Context, org, featureID string) error

	// LatestVersion returns the highest stored version, or 0 if the feature has none.
	LatestVersion(ctx context.Context, org, featureID string) (int, error)
}
