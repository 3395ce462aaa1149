package saferollout

import "errors"

var (
	// ErrNotFound indicates that the requested safe rollout was not found.
	ErrNotFound = errors.New("safe rollout not found")

	// ErrExists indicates that a safe rollout with the same id already exists.
	ErrExists = errors.New("safe rollout already exists")

	// ErrInvalidRollout indicates missing or inconsistent safe rollout fields.
	ErrInvalidRollout = errors.New("invalid safe rollout")
)
