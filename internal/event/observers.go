package event

import (
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
)

// Change is the payload delivered to state observers.
type Change struct {
	EntityID entity.ID

	// Entry is the recorded transition (Old is the previous New).
	Entry entity.StoreEntry

	// History is a snapshot of the entity's history after the change,
	// newest first.
	History entity.HistoryView
}

// ErrorSource keys the error observer registry.
type ErrorSource string

// Error sources.
const (
	SourceResult    ErrorSource = "result"
	SourceTransport ErrorSource = "transport"
)

// ErrorEvent is the payload delivered to error observers.
type ErrorEvent struct {
	Source ErrorSource

	// ID is the correlation id of the failed command (SourceResult only).
	ID int64

	Err  error
	Time time.Time
}

// Observers bundles the three observer registries of one process.
type Observers struct {
	States *observer.Registry[entity.ID, Change]
	Events *observer.Registry[string, NamedEvent]
	Errors *observer.Registry[ErrorSource, ErrorEvent]
}

// NewObservers creates the registries. opts.Name is ignored; each
// registry is named after what it carries.
func NewObservers(opts observer.Options) *Observers {
	named := func(name string) observer.Options {
		o := opts
		o.Name = name
		return o
	}
	return &Observers{
		States: observer.NewRegistry[entity.ID, Change](named("states")),
		Events: observer.NewRegistry[string, NamedEvent](named("events")),
		Errors: observer.NewRegistry[ErrorSource, ErrorEvent](named("errors")),
	}
}

// Wait blocks until every scheduled observer invocation has finished.
func (o *Observers) Wait() {
	o.States.Wait()
	o.Events.Wait()
	o.Errors.Wait()
}

// Close cancels every observer and waits for in-flight invocations.
func (o *Observers) Close() {
	o.States.Close()
	o.Events.Close()
	o.Errors.Close()
}
