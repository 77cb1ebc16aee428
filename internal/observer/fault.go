package observer

import "fmt"

// Kind distinguishes the two observer styles.
type Kind string

// Observer kinds.
const (
	KindSync  Kind = "sync"
	KindAsync Kind = "async"
)

// wildcardKey is the Fault.Key reported for observers attached with AttachAll.
const wildcardKey = "*"

// Fault describes one failed observer invocation.
type Fault struct {
	// Registry is the name of the registry that ran the observer.
	Registry string

	// Key identifies the event source (entity id, event type, ...).
	Key string

	// Handle identifies the observer.
	Handle Handle

	// Kind is the observer style.
	Kind Kind

	// Err is the returned error, or the recovered panic wrapped in ErrPanic.
	Err error

	// Panicked is true when Err came from a recovered panic.
	Panicked bool

	// Detached is true when the failure detached the observer.
	Detached bool
}

// FaultHandler receives observer faults. It is called from the worker
// goroutine that ran the observer and must not block.
type FaultHandler func(Fault)

// Error implements error so a Fault can be wrapped and logged directly.
func (f Fault) Error() string {
	return fmt.Sprintf("observer %s on %s[%s]: %v", f.Handle, f.Registry, f.Key, f.Err)
}

// Unwrap returns the underlying error.
func (f Fault) Unwrap() error {
	return f.Err
}
