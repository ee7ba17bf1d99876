package workflow

import "errors"

// ErrInvalidTransition is returned when a trigger has no transition from the current state
var ErrInvalidTransition = errors.New("invalid state transition")
