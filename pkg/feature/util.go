package feature

import (
	"errors"
	"fmt"
)

// errorf attaches a formatted detail to a sentinel error, keeping it matchable with errors.Is.
func errorf(sentinel error, format string, args ...any) error {
	return errors.Join(sentinel, fmt.Errorf(format, args...))
}
