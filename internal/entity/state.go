package entity

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Attributes is the free-form attribute bag reported with a state.
type Attributes map[string]any

// State is one hub-reported state of an entity.
//
// Value is the raw primary value ("on", "playing", "21.5"); actuators
// parse it into their own value type. State values are treated as
// immutable: attribute access goes through copies.
type State struct {
	Value       string
	attributes  Attributes
	LastChanged time.Time
	LastUpdated time.Time
}

// NewState builds a State. The attribute map is copied.
func NewState(value string, attrs Attributes, lastChanged, lastUpdated time.Time) State {
	return State{
		Value:       value,
		attributes:  maps.Clone(attrs),
		LastChanged: lastChanged,
		LastUpdated: lastUpdated,
	}
}

// Attributes returns a copy of the attribute bag.
func (s State) Attributes() Attributes {
	return maps.Clone(s.attributes)
}

// Attribute returns a single attribute value.
func (s State) Attribute(name string) (any, bool) {
	v, ok := s.attributes[name]
	return v, ok
}

// Float returns a numeric attribute. JSON numbers decode as float64;
// ints are accepted for states built in code.
func (s State) Float(name string) (float64, bool) {
	switch v := s.attributes[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bool returns a boolean attribute.
func (s State) Bool(name string) (bool, bool) {
	v, ok := s.attributes[name].(bool)
	return v, ok
}

// Text returns a string attribute.
func (s State) Text(name string) (string, bool) {
	v, ok := s.attributes[name].(string)
	return v, ok
}

// FriendlyName returns the friendly_name attribute, or "" if absent.
func (s State) FriendlyName() string {
	name, _ := s.Text("friendly_name")
	return name
}

// Equal reports whether two states carry the same value and timestamps.
// Attributes are not compared.
func (s State) Equal(other State) bool {
	return s.Value == other.Value &&
		s.LastChanged.Equal(other.LastChanged) &&
		s.LastUpdated.Equal(other.LastUpdated)
}

// StoreEntry is one reported transition: the state before and after.
type StoreEntry struct {
	Old State
	New State
}

// Changed reports whether the primary value differs between Old and New.
func (e StoreEntry) Changed() bool {
	return e.Old.Value != e.New.Value
}

// stateJSON is the wire shape used by the hub and the HTTP API.
type stateJSON struct {
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged time.Time  `json:"last_changed"`
	LastUpdated time.Time  `json:"last_updated"`
}

// MarshalJSON encodes the state in the hub's state object shape.
func (s State) MarshalJSON() ([]byte, error) {
	attrs := s.attributes
	if attrs == nil {
		attrs = Attributes{}
	}
	return json.Marshal(stateJSON{
		State:       s.Value,
		Attributes:  attrs,
		LastChanged: s.LastChanged,
		LastUpdated: s.LastUpdated,
	})
}

// UnmarshalJSON decodes the hub's state object shape.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding state: %w", err)
	}
	*s = State{
		Value:       raw.State,
		attributes:  raw.Attributes,
		LastChanged: raw.LastChanged,
		LastUpdated: raw.LastUpdated,
	}
	return nil
}
