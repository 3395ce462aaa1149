package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine: transition needs from, to and event")
	ErrNoTransition      = errors.New("statemachine: no transition for event")
	ErrRejected          = errors.New("statemachine: transition rejected by guards")
)

// TransitionError records the state and event a Fire call failed on.
// It unwraps to ErrNoTransition or ErrRejected.
type TransitionError struct {
	From  string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s on %s", e.Err, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return e.Err }
