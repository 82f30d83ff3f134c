package services

import "errors"

// Error values returned by the service layer. Token failures are
// deliberately coarse: malformed, expired, revoked, replayed and
// owner-mismatched refresh attempts are all ErrInvalidToken, so callers
// (and attackers) cannot tell them apart.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotFound           = errors.New("not found")
	ErrInvalidContent     = errors.New("invalid clipboard content")
)
