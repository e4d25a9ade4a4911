package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any *APIError with status 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound matches any *APIError with status 404.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response. Message comes from the response envelope
// when the body carried one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// EnvelopeError is a 2xx response whose envelope reported success:false.
type EnvelopeError struct {
	Message string
}

func (e *EnvelopeError) Error() string {
	if e.Message == "" {
		return "api: request was not successful"
	}
	return "api: " + e.Message
}

// Message extracts the user-facing message from an API failure, falling back
// to err.Error() for anything else.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var envErr *EnvelopeError
	if errors.As(err, &envErr) && envErr.Message != "" {
		return envErr.Message
	}
	return err.Error()
}
