package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account-security errors. All of these are recoverable by the end
	// user (retry, wait out a cooldown, unlock, re-login); none is fatal
	// to the process.
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountLocked           = errors.New("account is locked")
	ErrCodeInvalidOrExpired    = errors.New("code is invalid or expired")
	ErrResendCooldownActive    = errors.New("resend cooldown is active")
	ErrSocialAccountRestricted = errors.New("social accounts cannot use password flows")
	ErrSessionSuperseded       = errors.New("session superseded by a newer login")
)
