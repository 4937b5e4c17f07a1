// Copyright 2024-2026 Aiku AI

package client

import (
	"errors"
	"fmt"

	"github.com/aiku/upryzing-go/pkg/events"
)

var (
	ErrNoSession = errors.New("client has no session")
	ErrNotFound  = errors.New("entity not found")
)

// AuthError is reported when the event server rejects the session.
type AuthError = events.AuthError

// HTTPError is returned for a non-2xx API response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	// Type is the error type reported by the API, if any.
	Type string
	Body string
}

func (e *HTTPError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.Path, e.StatusCode, e.Type)
	}
	return fmt.Sprintf("%s %s failed with status %d", e.Method, e.Path, e.StatusCode)
}

// MFARequiredError is returned by Login when the account needs a second
// factor. Login is not retried.
type MFARequiredError struct {
	Ticket         string
	AllowedMethods []string
}

func (e *MFARequiredError) Error() string {
	return "multi-factor authentication required"
}

// ServerError is an Error frame received on the event connection.
type ServerError struct {
	Code string
}

func (e *ServerError) Error() string {
	return "event server error: " + e.Code
}
