package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist. Callers
	// must treat a record deleted between read and use the same way.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when creating a reset request for an account
	// that already has a live one. The caller retries as a resend.
	ErrConflict = errors.New("a reset request already exists for this account")

	// ErrAlreadyResent is returned when marking a request as re-sent that has
	// already been re-sent. This indicates a caller error.
	ErrAlreadyResent = errors.New("reset request has already been re-requested")
)
