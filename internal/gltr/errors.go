package gltr

import (
	"errors"
	"fmt"
)

// ErrEmptyInput reports text that yields no position to evaluate.
var ErrEmptyInput = errors.New("empty input")

// ModelInvocationError wraps a failed forward pass. No payload is produced
// when it is returned.
type ModelInvocationError struct {
	Op  string
	Err error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("model invocation failed during %s: %v", e.Op, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

func invocationError(op string, err error) error {
	return &ModelInvocationError{Op: op, Err: err}
}
