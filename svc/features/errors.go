package features

import "errors"

var (
	// ErrPartialPublish indicates the feature was committed but its revision could not be
	// marked published. Publishing the same revision again completes it.
	ErrPartialPublish = errors.New("feature committed but revision not marked published")

	// ErrReadOnlyField indicates a direct update touching a field owned by the publish flow.
	ErrReadOnlyField = errors.New("field cannot be changed directly")

	// ErrNoOrganizations indicates the service was built without an organization provider.
	ErrNoOrganizations = errors.New("organization provider is not configured")
)
