package hub

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  event.Kind
		check func(t *testing.T, env event.Envelope)
	}{
		{
			name: "state changed",
			frame: `{"id":1,"type":"event","event":{"event_type":"state_changed","data":{
				"entity_id":"light.kitchen",
				"old_state":{"state":"off","attributes":{}},
				"new_state":{"state":"on","attributes":{"brightness":255}}}}}`,
			kind: event.KindStateChanged,
			check: func(t *testing.T, env event.Envelope) {
				sc := env.StateChange
				if sc.EntityID.String() != "light.kitchen" || sc.Old.Value != "off" || sc.New.Value != "on" {
					t.Errorf("state change = %+v", sc)
				}
				if b, _ := sc.New.Float("brightness"); b != 255 {
					t.Errorf("brightness = %v", b)
				}
			},
		},
		{
			name:  "state changed for new entity",
			frame: `{"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"light.new","old_state":null,"new_state":{"state":"on"}}}}`,
			kind:  event.KindStateChanged,
			check: func(t *testing.T, env event.Envelope) {
				if env.StateChange.Old != nil {
					t.Error("Old should be nil for a new entity")
				}
			},
		},
		{
			name:  "named event",
			frame: `{"type":"event","event":{"event_type":"doorbell","data":{"who":"postman"},"origin":"LOCAL","time_fired":"2024-01-01T10:00:00Z"}}`,
			kind:  event.KindEvent,
			check: func(t *testing.T, env event.Envelope) {
				if env.Event.Type != "doorbell" || env.Event.Data["who"] != "postman" || env.Event.Origin != "LOCAL" {
					t.Errorf("event = %+v", env.Event)
				}
			},
		},
		{
			name:  "result success",
			frame: `{"id":7,"type":"result","success":true,"result":{"context":{}}}`,
			kind:  event.KindResult,
			check: func(t *testing.T, env event.Envelope) {
				if env.ID != 7 || !env.Result.Success || env.Result.Err != nil {
					t.Errorf("result = %+v", env.Result)
				}
			},
		},
		{
			name:  "result error",
			frame: `{"id":8,"type":"result","success":false,"error":{"code":"invalid_format","message":"bad"}}`,
			kind:  event.KindResult,
			check: func(t *testing.T, env event.Envelope) {
				if !errors.Is(env.Result.Err, event.ErrCommandFailed) {
					t.Errorf("Err = %v, want ErrCommandFailed", env.Result.Err)
				}
			},
		},
		{
			name:  "result failure without detail",
			frame: `{"id":9,"type":"result","success":false}`,
			kind:  event.KindResult,
			check: func(t *testing.T, env event.Envelope) {
				if env.Result.Err == nil {
					t.Error("failed result without error detail has nil Err")
				}
			},
		},
		{
			name:  "pong",
			frame: `{"id":10,"type":"pong"}`,
			kind:  event.KindResult,
		},
		{name: "not json", frame: `{{`, kind: event.KindUnknown},
		{name: "unknown type", frame: `{"type":"mystery"}`, kind: event.KindUnknown},
		{name: "event without type", frame: `{"type":"event","event":{}}`, kind: event.KindUnknown},
		{
			name:  "bad entity id",
			frame: `{"type":"event","event":{"event_type":"state_changed","data":{"entity_id":"nodot"}}}`,
			kind:  event.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := decode([]byte(tt.frame))
			if env.Kind != tt.kind {
				t.Fatalf("Kind = %s, want %s (err %v)", env.Kind, tt.kind, env.Err)
			}
			if tt.kind == event.KindUnknown && !errors.Is(env.Err, event.ErrMalformed) {
				t.Errorf("Err = %v, want ErrMalformed", env.Err)
			}
			if tt.check != nil {
				tt.check(t, env)
			}
		})
	}
}

func TestCallServiceEncoding(t *testing.T) {
	cmd := service.NewCommand("media_player", "volume_set", entity.MustParseID("media_player.receiver"),
		map[string]any{"volume_level": 0.4})

	raw, err := json.Marshal(callService(42, cmd))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got["id"] != 42.0 || got["type"] != "call_service" || got["domain"] != "media_player" || got["service"] != "volume_set" {
		t.Errorf("header = %v", got)
	}
	data := got["service_data"].(map[string]any)
	if data["entity_id"] != "media_player.receiver" || data["volume_level"] != 0.4 {
		t.Errorf("service_data = %v", data)
	}
}
