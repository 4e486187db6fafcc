package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrAuthExpired    = errors.New("authentication expired")
	ErrNetwork        = errors.New("network error")
	ErrServer         = errors.New("server error")
	ErrInvalidForm    = errors.New("invalid form")
	ErrSubmitInFlight = errors.New("submission already in flight")
	ErrNoSession      = errors.New("no active session")
	ErrLockHeld       = errors.New("lock already held")
)
