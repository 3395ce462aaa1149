package revision

import (
	"errors"
	"fmt"
)

func errorf(sentinel error, format string, args ...any) error {
	return errors.Join(sentinel, fmt.Errorf(format, args...))
}
