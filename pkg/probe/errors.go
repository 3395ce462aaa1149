package probe

import "errors"

var (
	ErrStart    = errors.New("failed to start probe server")
	ErrShutdown = errors.New("failed to shut down probe server")
)
