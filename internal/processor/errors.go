package processor

import (
	"errors"
	"strings"
)

// ErrProvider marks a completion failure the caller asked for directly
// (drafting, regeneration). Analysis and generation never return it.
var ErrProvider = errors.New("completion provider failed")

// ValidationError carries the user-facing messages for rejected input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

func invalid(msgs ...string) error {
	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{Messages: msgs}
}

// StepError names the pipeline step that failed. Err holds the detail for
// logs and is not meant for the caller.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + " failed: " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }

// Public is the message safe to hand back to a caller.
func (e *StepError) Public() string {
	return e.Step + " failed"
}

func step(name string, err error) error {
	return &StepError{Step: name, Err: err}
}
