package client

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError means the backend could not be reached.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: backend unreachable: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError means the backend answered with a non-success status or a
// body that could not be decoded.
type BackendError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBackend reports whether err is or wraps a *BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.StatusCode == http.StatusNotFound
}

// IsConflict reports whether the backend answered 409.
func IsConflict(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.StatusCode == http.StatusConflict
}
