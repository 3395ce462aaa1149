package notify

import "errors"

var (
	ErrInvalidationFailed = errors.New("cache invalidation failed")
	ErrAuditFailed        = errors.New("audit record failed")
	ErrSyncFailed         = errors.New("experiment sync failed")
)
