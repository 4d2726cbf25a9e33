// Package common defines shared constants and sentinel errors used across
// client and server layers of GoTogether. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// Validation errors.
	ErrValidation   = errors.New("validation error")
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrInvalidEmail = errors.New("invalid email address")

	// Credential errors.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrVerificationPending = errors.New("verification pending")

	// Verification challenge errors.
	ErrExpired         = errors.New("challenge expired")
	ErrMismatch        = errors.New("code mismatch")
	ErrSuperseded      = errors.New("challenge superseded")
	ErrAlreadyConsumed = errors.New("challenge already consumed")
	ErrRateLimited     = errors.New("too many verification requests")
	ErrDeliveryFailed  = errors.New("verification delivery failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
