package event

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// Dispatcher is the single consumer of the inbound envelope stream.
type Dispatcher struct {
	store     *entity.Store
	observers *Observers
	pending   *Pending
	logger    Logger
	now       func() time.Time
	onSeed    func(entities int)
}

// NewDispatcher creates a dispatcher writing to store and notifying observers.
func NewDispatcher(store *entity.Store, observers *Observers, pending *Pending) *Dispatcher {
	return &Dispatcher{
		store:     store,
		observers: observers,
		pending:   pending,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

// SetSeedHook registers fn to run after every snapshot is installed, on the
// dispatcher goroutine. It must not block. Must be called before Run.
func (d *Dispatcher) SetSeedHook(fn func(entities int)) {
	d.onSeed = fn
}

// Run consumes envelopes until in is closed or ctx is cancelled.
// Returns ctx.Err() on cancellation, nil when the stream ends.
func (d *Dispatcher) Run(ctx context.Context, in <-chan Envelope) error {
	d.logger.Info("event dispatcher started")
	defer d.logger.Info("event dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-in:
			if !ok {
				return nil
			}
			d.Handle(env)
		}
	}
}

// Handle classifies and routes one envelope. A panic raised while
// handling is recovered and logged.
func (d *Dispatcher) Handle(env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic handling envelope", "kind", env.Kind, "panic", fmt.Sprint(r))
		}
	}()

	switch env.Kind {
	case KindStateChanged:
		d.handleStateChange(env.StateChange)
	case KindEvent:
		d.handleEvent(env.Event)
	case KindResult:
		d.handleResult(env.Result)
	case KindSnapshot:
		d.Seed(env.Snapshot)
		if env.Result != nil {
			d.pending.Resolve(env.ID, *env.Result)
		}
	case KindTransportError:
		d.observers.Errors.Dispatch(SourceTransport, ErrorEvent{
			Source: SourceTransport,
			Err:    env.Err,
			Time:   d.now(),
		})
	default:
		d.logger.Warn("dropping unrecognised envelope",
			"kind", env.Kind,
			"error", env.Err,
			"raw", string(env.Raw),
		)
	}
}

func (d *Dispatcher) handleStateChange(sc *StateChange) {
	if sc == nil {
		d.logger.Warn("dropping state change without payload")
		return
	}
	if sc.New == nil {
		d.logger.Debug("ignoring state change without new state", "entity_id", sc.EntityID)
		return
	}

	entry, history := d.store.Record(sc.EntityID, *sc.New)
	n := d.observers.States.Dispatch(sc.EntityID, Change{
		EntityID: sc.EntityID,
		Entry:    entry,
		History:  history,
	})
	d.logger.Debug("state changed",
		"entity_id", sc.EntityID,
		"old", entry.Old.Value,
		"new", entry.New.Value,
		"observers", n,
	)
}

func (d *Dispatcher) handleEvent(ev *NamedEvent) {
	if ev == nil || ev.Type == "" {
		d.logger.Warn("dropping event without type")
		return
	}
	n := d.observers.Events.Dispatch(ev.Type, *ev)
	d.logger.Debug("event received", "event_type", ev.Type, "observers", n)
}

func (d *Dispatcher) handleResult(r *Result) {
	if r == nil {
		d.logger.Warn("dropping result without payload")
		return
	}

	matched := d.pending.Resolve(r.ID, *r)
	if r.Err == nil && r.Success {
		if !matched {
			d.logger.Debug("dropping unmatched result", "id", r.ID)
		}
		return
	}

	err := r.Err
	if err == nil {
		err = fmt.Errorf("%w: result %d reported failure", ErrCommandFailed, r.ID)
	}
	d.logger.Warn("command failed", "id", r.ID, "error", err)
	d.observers.Errors.Dispatch(SourceResult, ErrorEvent{
		Source: SourceResult,
		ID:     r.ID,
		Err:    err,
		Time:   d.now(),
	})
}

// Seed installs a hub snapshot. Old equals New for every entity and no
// observer is notified.
func (d *Dispatcher) Seed(records []StateRecord) {
	for _, rec := range records {
		d.store.Seed(rec.EntityID, rec.State)
	}
	d.logger.Info("state snapshot installed", "entities", len(records))
	if d.onSeed != nil {
		d.onSeed(len(records))
	}
}
