package params

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingParameter is matched by errors for path parameters supplied without a value.
	ErrMissingParameter = errors.New("missing path parameter")
	// ErrUnresolvedPathParameter is matched by errors for paths that still contain placeholders.
	ErrUnresolvedPathParameter = errors.New("unresolved path parameter")
)

// MissingParameterError reports a path parameter entry whose value is nil or empty.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing value for path parameter %q", e.Name)
}

func (e *MissingParameterError) Is(target error) bool {
	return target == ErrMissingParameter
}

// UnresolvedPathError carries the path that still has :token placeholders.
type UnresolvedPathError struct {
	Path   string
	Tokens []string
}

func (e *UnresolvedPathError) Error() string {
	return fmt.Sprintf("some path parameters were not initialized (%s): %s", strings.Join(e.Tokens, ", "), e.Path)
}

func (e *UnresolvedPathError) Is(target error) bool {
	return target == ErrUnresolvedPathParameter
}
