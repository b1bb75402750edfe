package service

import "errors"

// Sentinel errors returned by the Service in addition to the store and
// wizard taxonomies it passes through.
var (
	ErrSessionNotFound = errors.New("ranking session not found")
	ErrStaleSession    = errors.New("list changed while the session was open")
	ErrForbidden       = errors.New("session belongs to another user")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotStarted      = errors.New("service not started")
)
