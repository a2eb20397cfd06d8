package errors

import "errors"

// Domain sentinels shared by the session, transport and reminder packages.
var (
	// ErrSessionExpired signals that the session could not be kept alive:
	// the refresh token is gone, expired, or was rejected by the service.
	// The composition root should treat it as a navigation instruction to
	// the login entry point; the core never redirects on its own.
	ErrSessionExpired = errors.New("session expired, authentication required")

	// ErrRefreshFailed is returned when a token refresh call is rejected.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrTokenMalformed is returned when a token cannot be decoded. Callers
	// treat such tokens as expired.
	ErrTokenMalformed = errors.New("token malformed or undecodable")

	// ErrNotAuthenticated is returned by operations that require a session
	// when none is present.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// IsSessionExpired reports whether err indicates a terminal session failure.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
