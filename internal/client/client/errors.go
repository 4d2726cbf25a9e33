package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable means the server could not be reached at all.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthenticated means there is no usable session for the call.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired is returned when a refresh was rejected and the
	// local session has been cleared.
	ErrSessionExpired = fmt.Errorf("session expired: %w", ErrUnauthenticated)
	// ErrUnexpectedResponse means the body did not match the JSON envelope.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// APIError is a well-formed error response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Is lets a 401 match ErrUnauthenticated.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthenticated && e.Status == http.StatusUnauthorized
}

// Transient reports whether err is worth retrying once.
func Transient(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		switch ae.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
