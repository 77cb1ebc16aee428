package audit

import "errors"

var (
	// ErrNotFound is returned when an entry id does not exist.
	ErrNotFound = errors.New("audit: entry not found")

	// ErrUnanswered is recorded when the hub did not answer within the
	// recorder's result timeout.
	ErrUnanswered = errors.New("audit: no result from hub")
)
