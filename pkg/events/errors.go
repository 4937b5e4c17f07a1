// Copyright 2024-2026 Aiku AI

package events

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("event connection is not open")
	ErrPongTimeout  = errors.New("server did not answer ping in time")
	ErrClosed       = errors.New("connection manager is closed")
)

// DecodeError is reported for a frame that is not a typed JSON object. The
// frame is dropped and the connection stays open.
type DecodeError struct {
	Frame  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame %q: %s", e.Frame, e.Reason)
}

func newDecodeError(frame []byte, reason string) *DecodeError {
	const maxFrame = 128
	text := string(frame)
	if len(text) > maxFrame {
		text = text[:maxFrame] + "..."
	}
	return &DecodeError{Frame: text, Reason: reason}
}

// AuthError is reported when the server rejects the session token. The
// manager does not reconnect after it.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	return "event server rejected authentication: " + e.Code
}

// IsAuthFailure reports whether an Error frame code means the session was
// rejected.
func IsAuthFailure(code string) bool {
	return code == "InvalidSession" || code == "NotAuthenticated"
}
