package actuator

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// Submitter sends a resolved command to the hub and returns its
// correlation id. It does not wait for the hub's answer.
type Submitter interface {
	Submit(ctx context.Context, cmd service.Command) (int64, error)
}

// Deps are the shared collaborators every facade needs.
type Deps struct {
	Store     *entity.Store
	States    *observer.Registry[entity.ID, event.Change]
	Submitter Submitter
}

// Snapshot is a typed view of one entity state.
type Snapshot[V any] struct {
	Value V
	State entity.State
}

// Change is the typed payload handed to facade observers.
type Change[V comparable] struct {
	EntityID entity.ID
	Old      Snapshot[V]
	New      Snapshot[V]
	History  entity.HistoryView

	parse func(entity.State) V
}

// ChangedFrom reports whether this change moved the value from one to to.
func (c Change[V]) ChangedFrom(from, to V) bool {
	return c.Old.Value == from && c.New.Value == to
}

// Previous returns the typed state offset steps back in history
// (0 is the current state). false means not yet available.
func (c Change[V]) Previous(offset int) (Snapshot[V], bool) {
	s, ok := c.History.At(offset)
	if !ok {
		return Snapshot[V]{}, false
	}
	return Snapshot[V]{Value: c.parse(s), State: s}, true
}

// view is the read side shared by actuators and sensors.
type view[V comparable] struct {
	id     entity.ID
	parse  func(entity.State) V
	store  *entity.Store
	states *observer.Registry[entity.ID, event.Change]
}

// ID returns the entity id.
func (v *view[V]) ID() entity.ID {
	return v.id
}

// ActualState returns the latest state reported by the hub. false means
// the entity has not been reported yet.
func (v *view[V]) ActualState() (Snapshot[V], bool) {
	entry, ok := v.store.Get(v.id)
	if !ok {
		return Snapshot[V]{}, false
	}
	return v.snapshot(entry.New), true
}

// History returns the entity's recorded states, newest first.
func (v *view[V]) History() entity.HistoryView {
	return v.store.History(v.id)
}

// Observe attaches a synchronous-style observer for this entity.
func (v *view[V]) Observe(fn func(Change[V]) error) observer.Handle {
	return v.states.Attach(v.id, func(c event.Change) error {
		return fn(v.change(c))
	})
}

// ObserveAsync attaches an asynchronous-style observer for this entity.
// ctx is cancelled when the observer is detached.
func (v *view[V]) ObserveAsync(fn func(context.Context, Change[V]) error) observer.Handle {
	return v.states.AttachAsync(v.id, func(ctx context.Context, c event.Change) error {
		return fn(ctx, v.change(c))
	})
}

// Detach removes an observer attached through this facade.
func (v *view[V]) Detach(h observer.Handle) bool {
	return v.states.Detach(h)
}

// when wraps fn so it only runs for changes matching pred.
func when[V comparable](pred func(Change[V]) bool, fn func(Change[V]) error) func(Change[V]) error {
	return func(c Change[V]) error {
		if !pred(c) {
			return nil
		}
		return fn(c)
	}
}

func whenAsync[V comparable](pred func(Change[V]) bool, fn func(context.Context, Change[V]) error) func(context.Context, Change[V]) error {
	return func(ctx context.Context, c Change[V]) error {
		if !pred(c) {
			return nil
		}
		return fn(ctx, c)
	}
}

func (v *view[V]) snapshot(s entity.State) Snapshot[V] {
	return Snapshot[V]{Value: v.parse(s), State: s}
}

func (v *view[V]) change(c event.Change) Change[V] {
	return Change[V]{
		EntityID: c.EntityID,
		Old:      v.snapshot(c.Entry.Old),
		New:      v.snapshot(c.Entry.New),
		History:  c.History,
		parse:    v.parse,
	}
}

// Actuator is a controllable entity with value type V and delta type D.
//
// Thread Safety: all methods are safe for concurrent use. Submissions from
// one actuator are serialised so they reach the transport in call order.
type Actuator[V comparable, D any] struct {
	view[V]
	resolver  *service.Resolver[V, D]
	submitter Submitter
	mu        sync.Mutex
}

// New creates an actuator.
func New[V comparable, D any](id entity.ID, parse func(entity.State) V, resolver *service.Resolver[V, D], deps Deps) *Actuator[V, D] {
	return &Actuator[V, D]{
		view: view[V]{
			id:     id,
			parse:  parse,
			store:  deps.Store,
			states: deps.States,
		},
		resolver:  resolver,
		submitter: deps.Submitter,
	}
}

// Resolve returns the command SetDesiredState would submit, without
// submitting it.
func (a *Actuator[V, D]) Resolve(desired service.Desired[V, D]) (service.Command, error) {
	actual, ok := a.ActualState()
	if !ok {
		return service.Command{}, fmt.Errorf("%w: %s", ErrNoState, a.id)
	}
	return a.resolver.Resolve(a.id, actual.Value, desired)
}

// SetDesiredState resolves desired against the actual state and submits
// the resulting command. Resolution errors are returned without
// submitting anything.
//
// Returns:
//   - int64: correlation id of the submitted command
//   - error: a service.ErrResolution error, ErrNoState, or ErrSubmit
func (a *Actuator[V, D]) SetDesiredState(ctx context.Context, desired service.Desired[V, D]) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cmd, err := a.Resolve(desired)
	if err != nil {
		return 0, err
	}

	id, err := a.submitter.Submit(ctx, cmd)
	if err != nil {
		return 0, fmt.Errorf("%w: %s for %s: %w", ErrSubmit, cmd, a.id, err)
	}
	return id, nil
}

// Handle re-exports observer.Handle for facade callers.
type Handle = observer.Handle
