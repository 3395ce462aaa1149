package revision

import "errors"

// Predefined errors for the revision package.
var (
	// ErrRevisionNotFound indicates that the requested revision was not found.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrRevisionExists indicates that a revision with the same version already exists for the feature.
	ErrRevisionExists = errors.New("revision already exists")

	// ErrInvalidRevisionState indicates an operation that the revision's status does not allow,
	// such as publishing or editing a published or discarded revision.
	ErrInvalidRevisionState = errors.New("invalid revision state")

	// ErrNoChanges indicates a publish whose merge result changes nothing.
	ErrNoChanges = errors.New("revision has no changes")

	// ErrUnknownRule indicates an edit referencing a rule index that does not exist.
	ErrUnknownRule = errors.New("unknown rule")

	// ErrDuplicateRule indicates a rule id that is already used in the environment.
	ErrDuplicateRule = errors.New("duplicate rule id")

	// ErrStaleRevision indicates a revision older than the live feature version.
	ErrStaleRevision = errors.New("revision is older than the live feature")

	// ErrMergeConflict indicates the revision conflicts with changes published since it was created.
	ErrMergeConflict = errors.New("revision conflicts with live feature")

	// ErrSelfReview indicates the author tried to review their own revision.
	ErrSelfReview = errors.New("cannot review own revision")
)
