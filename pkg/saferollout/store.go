package saferollout

import "context"

// Store persists safe rollouts scoped by organization.
type Store interface {
	Create(ctx context.Context, s *SafeRollout) error

	// GetByIDs returns the rollouts that exist among ids, ordered by id. Missing ids are skipped.
	GetByIDs(ctx context.Context, org string, ids []string) ([]*SafeRollout, error)

	// Update replaces a stored rollout. Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, s *SafeRollout) error
}
