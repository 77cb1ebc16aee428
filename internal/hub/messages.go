package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// Message types of the hub websocket protocol.
const (
	typeAuthRequired    = "auth_required"
	typeAuth            = "auth"
	typeAuthOK          = "auth_ok"
	typeAuthInvalid     = "auth_invalid"
	typeResult          = "result"
	typeEvent           = "event"
	typePing            = "ping"
	typePong            = "pong"
	typeCallService     = "call_service"
	typeSubscribeEvents = "subscribe_events"
	typeGetStates       = "get_states"
	typeFireEvent       = "fire_event"

	eventStateChanged = "state_changed"
)

// AuthResponse is the hub's answer to the auth message.
type AuthResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	HAVersion string `json:"ha_version,omitempty"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// request is the common header of every outbound command.
type request struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type callServiceMessage struct {
	request
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

type subscribeEventsMessage struct {
	request
	EventType string `json:"event_type,omitempty"`
}

type fireEventMessage struct {
	request
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
}

// inbound is the union of every frame the hub sends after auth.
type inbound struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *event.HubError `json:"error,omitempty"`
	Event   *inboundEvent   `json:"event,omitempty"`
}

type inboundEvent struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
}

type stateChangedData struct {
	EntityID entity.ID     `json:"entity_id"`
	OldState *entity.State `json:"old_state"`
	NewState *entity.State `json:"new_state"`
}

// decode classifies one inbound frame. It never fails: frames that cannot
// be understood become KindUnknown envelopes.
func decode(frame []byte) event.Envelope {
	var msg inbound
	if err := json.Unmarshal(frame, &msg); err != nil {
		return event.Unknown(frame, fmt.Errorf("%w: %w", event.ErrMalformed, err))
	}

	switch msg.Type {
	case typeResult:
		return event.ResultOf(toResult(msg))
	case typePong:
		return event.ResultOf(event.Result{ID: msg.ID, Success: true})
	case typeEvent:
		return decodeEvent(frame, msg.Event)
	default:
		return event.Unknown(frame, fmt.Errorf("%w: unexpected type %q", event.ErrMalformed, msg.Type))
	}
}

func toResult(msg inbound) event.Result {
	r := event.Result{
		ID:      msg.ID,
		Success: msg.Success != nil && *msg.Success,
		Data:    msg.Result,
	}
	if !r.Success {
		r.Err = msg.Error
		if msg.Error == nil {
			r.Err = &event.HubError{Code: "unknown_error", Message: "hub reported failure without detail"}
		}
	}
	return r
}

func decodeEvent(frame []byte, ev *inboundEvent) event.Envelope {
	if ev == nil || ev.EventType == "" {
		return event.Unknown(frame, fmt.Errorf("%w: event without type", event.ErrMalformed))
	}

	if ev.EventType == eventStateChanged {
		var data stateChangedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return event.Unknown(frame, fmt.Errorf("%w: state_changed: %w", event.ErrMalformed, err))
		}
		return event.StateChanged(event.StateChange{
			EntityID: data.EntityID,
			Old:      data.OldState,
			New:      data.NewState,
		})
	}

	var data map[string]any
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return event.Unknown(frame, fmt.Errorf("%w: event data: %w", event.ErrMalformed, err))
		}
	}
	return event.Named(event.NamedEvent{
		Type:      ev.EventType,
		Data:      data,
		Origin:    ev.Origin,
		TimeFired: ev.TimeFired,
	})
}

// decodeStates decodes a get_states result payload.
func decodeStates(data json.RawMessage) ([]event.StateRecord, error) {
	var records []event.StateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding states: %w", err)
	}
	return records, nil
}
