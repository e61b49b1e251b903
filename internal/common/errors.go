// Package common defines shared constants and sentinel errors used across
// the paycodes client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage error")

	// Connectivity errors.
	ErrOffline     = errors.New("offline")
	ErrTimeout     = errors.New("request timed out")
	ErrUnavailable = errors.New("server unavailable")

	// Auth errors. ErrUnauthorized means the token is invalid and the local
	// session must be torn down; ErrForbidden and ErrNotFound from the remote
	// side are surfaced as warnings with the session retained.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrTokenExpired = errors.New("token expired")

	// Input or remote-payload validation failed before any side effect.
	ErrValidation = errors.New("validation error")

	// A token refresh is already running; the caller should not queue.
	ErrRefreshInFlight = errors.New("token refresh already in progress")
)
