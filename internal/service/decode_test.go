package service

import (
	"errors"
	"testing"
)

func TestDecodeCall(t *testing.T) {
	tests := []struct {
		name       string
		domain     string
		service    string
		payload    string
		wantErr    bool
		wantTarget string
		wantData   int
	}{
		{name: "empty payload", domain: "homeassistant", service: "restart"},
		{name: "null payload", domain: "homeassistant", service: "restart", payload: "null"},
		{name: "target and data", domain: "light", service: "turn_on", payload: `{"entity_id":"light.hall","brightness":80}`, wantTarget: "light.hall", wantData: 1},
		{name: "data only", domain: "scene", service: "apply", payload: `{"entities":{}}`, wantData: 1},
		{name: "missing service", domain: "light", wantErr: true},
		{name: "not an object", domain: "light", service: "turn_on", payload: `[1]`, wantErr: true},
		{name: "numeric entity_id", domain: "light", service: "turn_on", payload: `{"entity_id":3}`, wantErr: true},
		{name: "invalid entity_id", domain: "light", service: "turn_on", payload: `{"entity_id":"hall"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCall(tt.domain, tt.service, []byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrBadCall) {
					t.Fatalf("DecodeCall() error = %v, want ErrBadCall", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeCall() error = %v", err)
			}
			if cmd.Domain != tt.domain || cmd.Service != tt.service {
				t.Errorf("command = %s", cmd)
			}
			target := ""
			if cmd.Target != nil {
				target = cmd.Target.String()
			}
			if target != tt.wantTarget {
				t.Errorf("target = %q, want %q", target, tt.wantTarget)
			}
			if len(cmd.Data) != tt.wantData {
				t.Errorf("data = %v, want %d entries", cmd.Data, tt.wantData)
			}
		})
	}
}
