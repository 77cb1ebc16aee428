package observer

import "errors"

// ErrPanic wraps a value recovered from a panicking observer.
var ErrPanic = errors.New("observer: panic")
