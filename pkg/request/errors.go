package request

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for request failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrClientStatus indicates a 4xx response. It is never retried.
	ErrClientStatus = errors.New("request: client error status")

	// ErrUnreachable indicates every attempt failed with a connection
	// error, a timeout or a 5xx response.
	ErrUnreachable = errors.New("request: target unreachable")

	// ErrSessionClosed is returned by Fetch after Close.
	ErrSessionClosed = errors.New("request: session closed")

	// ErrTooManyRedirects stops a redirect chain longer than defaults.MaxRedirects.
	ErrTooManyRedirects = errors.New("request: too many redirects")
)

// StatusError carries an HTTP status that ended an attempt.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is matches ErrClientStatus for 4xx codes.
func (e *StatusError) Is(target error) bool {
	return target == ErrClientStatus && e.StatusCode >= 400 && e.StatusCode < 500
}
