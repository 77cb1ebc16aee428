package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// Kind discriminates envelopes.
type Kind string

// Envelope kinds.
const (
	KindStateChanged   Kind = "state_changed"
	KindEvent          Kind = "event"
	KindResult         Kind = "result"
	KindSnapshot       Kind = "snapshot"
	KindTransportError Kind = "transport_error"
	KindUnknown        Kind = "unknown"
)

// Envelope is one classified inbound message. Exactly one payload field
// is set, matching Kind.
type Envelope struct {
	Kind Kind

	// ID is the correlation id of a result (zero otherwise).
	ID int64

	StateChange *StateChange
	Event       *NamedEvent
	Result      *Result

	// Snapshot is the decoded get_states reply of a KindSnapshot
	// envelope. Result is set as well so the waiter is completed.
	Snapshot []StateRecord

	// Err is the transport failure (KindTransportError) or the reason an
	// envelope could not be classified (KindUnknown).
	Err error

	// Raw is the undecoded frame, kept for KindUnknown diagnostics.
	Raw json.RawMessage
}

// StateChange reports a transition of one entity. Old is nil for a newly
// created entity; New is nil when the entity was removed.
type StateChange struct {
	EntityID entity.ID
	Old      *entity.State
	New      *entity.State
}

// NamedEvent is a hub event other than a state change.
type NamedEvent struct {
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	Origin    string         `json:"origin,omitempty"`
	TimeFired time.Time      `json:"time_fired"`
}

// Result is the hub's answer to one command.
type Result struct {
	// ID is the correlation id of the command.
	ID int64

	// Success is true if the hub executed the command.
	Success bool

	// Data is the command's result payload, undecoded.
	Data json.RawMessage

	// Err is the hub-reported failure (*HubError), or the transport
	// failure that prevented an answer.
	Err error
}

// HubError is a failure reported by the hub in a result frame.
type HubError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *HubError) Error() string {
	return fmt.Sprintf("hub error %s: %s", e.Code, e.Message)
}

// Is makes every HubError match ErrCommandFailed.
func (e *HubError) Is(target error) bool {
	return target == ErrCommandFailed
}

// StateRecord is one entity in a hub state snapshot.
type StateRecord struct {
	EntityID entity.ID
	State    entity.State
}

// UnmarshalJSON decodes a get_states item, where entity_id sits next to
// the state fields.
func (r *StateRecord) UnmarshalJSON(data []byte) error {
	var head struct {
		EntityID entity.ID `json:"entity_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	var state entity.State
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	r.EntityID = head.EntityID
	r.State = state
	return nil
}

// StateChanged wraps a state change.
func StateChanged(sc StateChange) Envelope {
	return Envelope{Kind: KindStateChanged, StateChange: &sc}
}

// Named wraps a named event.
func Named(ev NamedEvent) Envelope {
	return Envelope{Kind: KindEvent, Event: &ev}
}

// ResultOf wraps a command result.
func ResultOf(r Result) Envelope {
	return Envelope{Kind: KindResult, ID: r.ID, Result: &r}
}

// SnapshotOf wraps a get_states reply that should reseed the store.
func SnapshotOf(r Result, records []StateRecord) Envelope {
	return Envelope{Kind: KindSnapshot, ID: r.ID, Result: &r, Snapshot: records}
}

// TransportError wraps an unrecoverable transport failure.
func TransportError(err error) Envelope {
	return Envelope{Kind: KindTransportError, Err: err}
}

// Unknown wraps a frame that could not be classified.
func Unknown(raw []byte, reason error) Envelope {
	return Envelope{Kind: KindUnknown, Raw: raw, Err: reason}
}
