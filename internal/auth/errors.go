package auth

import "errors"

var (
	// ErrUnauthorized marks a server response that rejected the presented
	// access token (401-equivalent). The HTTP adapter maps wire responses
	// to this sentinel; the manager reacts to it with a single-flight
	// refresh.
	ErrUnauthorized = errors.New("request unauthorized")

	// ErrAuth is the terminal authentication failure: the refresh token
	// was rejected, the refresh timed out, or no credentials are held.
	// Surfaced to the caller as a forced logout.
	ErrAuth = errors.New("authentication failed")

	// ErrNoSession is returned when an authenticated call is attempted
	// with no stored credentials at all.
	ErrNoSession = errors.New("no authenticated session")
)
