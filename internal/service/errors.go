package service

import "errors"

var (
	// ErrUnknownSession is returned when an operation references a session
	// id, local or canonical, that the client has never seen.
	ErrUnknownSession = errors.New("unknown session id")

	// ErrEmptyDraft is returned when a session draft carries no usable
	// content at all.
	ErrEmptyDraft = errors.New("empty session draft")
)
