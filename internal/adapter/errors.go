package adapter

import "errors"

var (
	// ErrNetwork marks a transport-level failure: the request never produced
	// an HTTP response (DNS, connect, timeout). The orchestrator treats it
	// as "offline" and falls back to the queue.
	ErrNetwork = errors.New("network unavailable")

	// ErrConflict marks a 409 response, e.g. a duplicate create the server
	// rejected outright instead of deduplicating.
	ErrConflict = errors.New("server reported conflict")
)
