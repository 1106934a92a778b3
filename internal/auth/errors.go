package auth

import "errors"

var (
	// ErrInvalidToken is returned when the provided token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingToken is returned when no bearer token accompanies the request
	ErrMissingToken = errors.New("no authentication provided")
	// ErrNotAdmin is returned when a valid token lacks the admin role
	ErrNotAdmin = errors.New("admin role required")
)
