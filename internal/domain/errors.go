package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	ErrAlreadyVerified = errors.New("already verified")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrInvalidOTP      = errors.New("invalid or expired otp")
	ErrDispatchFailed  = errors.New("dispatch failed")

	// ErrNotVerified is a forbidden precondition: the channel has not been verified yet.
	ErrNotVerified = fmt.Errorf("channel not verified: %w", ErrForbidden)
)
