package webcollect

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when an accepted response cannot be decoded
// or lacks a field the caller needs.
var ErrMalformedResponse = errors.New("webcollect: malformed response")

// ValidationError reports request data rejected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NetworkError wraps a transport-level failure: DNS, connection or timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("webcollect: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a response whose status the endpoint does not accept.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("webcollect: api error %d: %s", e.StatusCode, e.Message)
}
