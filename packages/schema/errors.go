package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName is returned when an endpoint name is not a \w+ token.
	ErrInvalidName = errors.New("invalid endpoint name")
	// ErrDuplicateEndpoint is returned when a name is registered twice.
	ErrDuplicateEndpoint = errors.New("duplicate endpoint")
	// ErrInvalidTimeout is returned when an endpoint timeout is negative.
	ErrInvalidTimeout = errors.New("invalid endpoint timeout")
	// ErrUnknownEndpoint is returned when calling a name that was never registered.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	// ErrInvalidOptions is returned when the registry options fail validation.
	ErrInvalidOptions = errors.New("invalid registry options")
	// ErrTesterPanic is matched by tester failures that came from a panic.
	ErrTesterPanic = errors.New("tester panicked")
)

// DefinitionError reports a definition rejected while building a registry.
type DefinitionError struct {
	Index int
	Name  string
	Err   error
}

func (e *DefinitionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrInvalidName):
		return fmt.Sprintf("endpoint #%d: %v %q: name only allows letters, digits and underscores", e.Index, e.Err, e.Name)
	default:
		return fmt.Sprintf("endpoint #%d: %v %q", e.Index, e.Err, e.Name)
	}
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// IsDefinitionError checks if the error came from a rejected definition.
func IsDefinitionError(err error) bool {
	var e *DefinitionError
	return errors.As(err, &e)
}
