package feature

import "errors"

// Predefined errors for the feature package.
var (
	// ErrFeatureNotFound indicates that the requested feature was not found.
	ErrFeatureNotFound = errors.New("feature not found")

	// ErrFeatureExists indicates that a feature with the same id already exists in the organization.
	ErrFeatureExists = errors.New("feature already exists")

	// ErrInvalidFeature indicates that the provided feature parameters are invalid.
	ErrInvalidFeature = errors.New("invalid feature parameters")

	// ErrInvalidEnvironment indicates a reference to an environment the organization does not define.
	ErrInvalidEnvironment = errors.New("invalid environment")

	// ErrVersionConflict indicates the stored feature changed since the caller's snapshot was read.
	ErrVersionConflict = errors.New("feature version conflict")

	// ErrUnknownRuleKind indicates a serialized rule with an unsupported type discriminator.
	ErrUnknownRuleKind = errors.New("unknown rule type")
)
