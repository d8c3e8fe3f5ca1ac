package http

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every TransportError.
	ErrTransport = errors.New("transport error")
	// ErrInvalidMethod is returned for verbs outside the supported set.
	ErrInvalidMethod = errors.New("invalid HTTP method")
)

// TransportError reports a failure to complete the HTTP exchange: connection
// errors, timeouts, unreadable responses. A response with a non-2xx status is
// not a TransportError.
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport error: %v", e.Method, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// IsTransportError checks if the error is a transport failure.
func IsTransportError(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}
