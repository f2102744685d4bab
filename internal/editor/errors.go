package editor

import "errors"

// Errors returned by sessions and the session manager.
var (
	// ErrSessionClosed indicates the session was discarded.
	ErrSessionClosed = errors.New("editor session closed")

	// ErrSessionNotFound indicates no open session has the given id.
	ErrSessionNotFound = errors.New("editor session not found")
)
