package cat

import "errors"

var (
	// ErrEmptyPool is returned when no question matches the test criteria.
	ErrEmptyPool = errors.New("cat: no eligible questions for test")

	// ErrOutOfSequence is returned when an answer does not target the
	// question currently in flight. Nothing is written.
	ErrOutOfSequence = errors.New("cat: answer out of sequence")

	// ErrUnauthorizedSession is returned when the caller does not own the session.
	ErrUnauthorizedSession = errors.New("cat: caller does not own session")

	// ErrNotFound is returned for unknown session, test or question ids.
	ErrNotFound = errors.New("cat: not found")

	// ErrSessionClosed is returned when abandoning a session that already ended.
	ErrSessionClosed = errors.New("cat: session already closed")

	// ErrInvalidOptions is returned for inconsistent test options.
	ErrInvalidOptions = errors.New("cat: invalid test options")
)
