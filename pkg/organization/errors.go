package organization

import "errors"

var (
	// ErrNotFound indicates no settings exist for the requested organization.
	ErrNotFound = errors.New("organization not found")

	// ErrInvalidSettings indicates malformed organization settings.
	ErrInvalidSettings = errors.New("invalid organization settings")

	// ErrForbidden indicates the actor may not access the requested resource.
	ErrForbidden = errors.New("forbidden")
)
