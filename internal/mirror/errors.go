package mirror

import "errors"

var (
	// ErrBadCommand is returned for an inbound command that cannot be
	// turned into a service call.
	ErrBadCommand = errors.New("mirror: malformed command")
)
