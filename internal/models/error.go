package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential and account state errors
	ErrInvalidCredentials = errors.New("invalid login id or password")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Session errors
	ErrSessionNotFound = errors.New("no session for device")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid token")

	// Password change errors
	ErrPasswordMismatch  = errors.New("new password and confirmation do not match")
	ErrPasswordUnchanged = errors.New("new password must differ from current password")
)
