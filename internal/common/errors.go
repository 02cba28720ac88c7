// Package common defines shared constants and sentinel errors used across
// the ridehail server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation error")

	// Account errors.
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrDuplicateAccount   = errors.New("user with this email already exists")
	ErrAccountDisabled    = errors.New("account has been deactivated")

	// Session errors. ErrUnauthenticated is the only one that leaves the
	// server; the others are kept for logs and metrics.
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrMissingSecret   = errors.New("token signing secret is not configured")

	// Ride errors.
	ErrInvalidRideState = errors.New("ride cannot be changed in its current state")
	ErrAlreadyRated     = errors.New("you have already rated this ride")

	// Rate limiting.
	ErrRateLimited = errors.New("too many requests")
)
