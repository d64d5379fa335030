package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when a closed session is updated.
	ErrSessionClosed = errors.New("session closed")
)
