package mongo

import "errors"

var (
	ErrUnavailable = errors.New("mongo: server unavailable")
	ErrNoPrimary   = errors.New("mongo: primary not reachable")
	ErrEncoding    = errors.New("mongo: document conversion failed")
)
