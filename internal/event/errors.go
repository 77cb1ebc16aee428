package event

import "errors"

// Domain errors for the event package.
var (
	// ErrPendingClosed is delivered to waiters that were still open when
	// the pending table was closed.
	ErrPendingClosed = errors.New("event: pending results closed")

	// ErrCommandFailed is matched by every *HubError.
	ErrCommandFailed = errors.New("event: hub rejected command")

	// ErrMalformed marks an envelope that could not be classified.
	ErrMalformed = errors.New("event: malformed envelope")
)
