package service

import "errors"

// Domain errors for the service package.
//
// All resolution failures wrap ErrResolution:
//
//	if errors.Is(err, service.ErrResolution) {
//	    // the desired state cannot be expressed as a hub command
//	}
var (
	// ErrResolution is the parent of every resolution error.
	ErrResolution = errors.New("service: resolution failed")

	// ErrNotActionable is returned when the actual or desired value is
	// terminal (readback-only) for this actuator type.
	ErrNotActionable = errors.New("service: value not actionable")

	// ErrNoRule is returned when the rule table has no case for the
	// desired value.
	ErrNoRule = errors.New("service: no rule for value")
)

// ErrBadCall is returned by DecodeCall for malformed external service
// calls.
var ErrBadCall = errors.New("service: malformed call")
