package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals query text the search form refuses to submit.
	ErrValidation = errors.New("invalid query")
	// ErrNetwork signals a transport failure talking to the search proxy.
	ErrNetwork = errors.New("search proxy unreachable")
	// ErrHTTP signals a non-2xx response from the search proxy.
	ErrHTTP = errors.New("search proxy returned an error status")
	// ErrDecode signals a response body that is not a search index response.
	ErrDecode = errors.New("undecodable search response")
	// ErrMalformedResponse signals a decoded response without the expected shape.
	ErrMalformedResponse = errors.New("malformed search response")

	// ErrSessionNotFound signals an unknown or closed tab session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions signals that the open session limit is reached.
	ErrTooManySessions = errors.New("too many open sessions")
)

// HTTPError wraps ErrHTTP with the status code returned by the proxy.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrHTTP.Error(), e.Status)
}

func (e *HTTPError) Unwrap() error { return ErrHTTP }

// NewHTTPError creates an HTTP status error.
func NewHTTPError(status int) error {
	return &HTTPError{Status: status}
}
