package identity

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRejected is matched by every non-2xx response.
	ErrRejected = errors.New("identity service rejected request")
	// ErrUnauthorized is additionally matched by 401 and 403 responses.
	ErrUnauthorized = errors.New("identity service denied credentials")
	// ErrNetworkFailure is returned when the request never produced a response.
	ErrNetworkFailure = errors.New("identity service unreachable")
	// ErrInvalidResponse is returned for a 2xx response whose body cannot be used.
	ErrInvalidResponse = errors.New("identity service returned an invalid response")
)

// An error in the transport chain with a LocalFailure() bool method that
// returns true is passed through as is instead of being wrapped in
// [ErrNetworkFailure]. The session transport uses this for token store
// failures.

// StatusError describes a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("identity %s: status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap exposes [ErrRejected] and, for 401/403, [ErrUnauthorized].
func (e *StatusError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return []error{ErrRejected, ErrUnauthorized}
	}
	return []error{ErrRejected}
}
