package service

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

type mode string

const (
	modeIdle    mode = "idle"
	modeBusy    mode = "busy"
	modeUnknown mode = "unknown"
)

type delta struct {
	A *int
	B *int
	C *int
}

func ptr(v int) *int { return &v }

func field(name string, get func(delta) *int) Rule[delta] {
	return When(name, func(d delta) (map[string]any, bool) {
		v := get(d)
		if v == nil {
			return nil, false
		}
		return map[string]any{name: *v}, true
	})
}

func testResolver() *Resolver[mode, delta] {
	return NewResolver[mode, delta]("test").
		Terminal(modeUnknown).
		Case(modeIdle, "default_idle",
			field("a", func(d delta) *int { return d.A }),
			field("b", func(d delta) *int { return d.B }),
			field("c", func(d delta) *int { return d.C }),
		)
}

var target = entity.NewID("test", "thing")

func TestResolve_FirstMatchWins(t *testing.T) {
	r := testResolver()

	cmd, err := r.Resolve(target, modeIdle, Desired[mode, delta]{
		Value: modeIdle,
		Delta: delta{B: ptr(2), C: ptr(3)},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cmd.Service != "b" {
		t.Errorf("Service = %q, want %q", cmd.Service, "b")
	}
	if cmd.Data["b"] != 2 {
		t.Errorf("Data = %v, want b=2", cmd.Data)
	}
	if _, ok := cmd.Data["c"]; ok {
		t.Error("lower-priority delta leaked into command data")
	}
}

func TestResolve_Fallback(t *testing.T) {
	r := testResolver()

	cmd, err := r.Resolve(target, modeIdle, Desired[mode, delta]{Value: modeIdle})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cmd.Service != "default_idle" || cmd.Domain != "test" {
		t.Errorf("command = %s, want test.default_idle", cmd)
	}
	if got := cmd.ServiceData()["entity_id"]; got != "test.thing" {
		t.Errorf("entity_id = %v, want test.thing", got)
	}
}

func TestResolve_TerminalRejected(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name    string
		actual  mode
		desired mode
	}{
		{name: "terminal actual", actual: modeUnknown, desired: modeIdle},
		{name: "terminal desired", actual: modeIdle, desired: modeUnknown},
		{name: "both terminal", actual: modeUnknown, desired: modeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(target, tt.actual, Desired[mode, delta]{Value: tt.desired, Delta: delta{A: ptr(1)}})
			if !errors.Is(err, ErrResolution) || !errors.Is(err, ErrNotActionable) {
				t.Errorf("Resolve() error = %v, want ErrResolution/ErrNotActionable", err)
			}
		})
	}
}

func TestResolve_NoRule(t *testing.T) {
	r := testResolver()

	_, err := r.Resolve(target, modeIdle, Desired[mode, delta]{Value: modeBusy})
	if !errors.Is(err, ErrNoRule) {
		t.Errorf("Resolve() error = %v, want ErrNoRule", err)
	}
}

func TestCommand_ServiceDataWithoutTarget(t *testing.T) {
	cmd := Command{Domain: "homeassistant", Service: "restart", Data: map[string]any{"x": 1}}
	data := cmd.ServiceData()
	if _, ok := data["entity_id"]; ok {
		t.Error("hub-wide command carries entity_id")
	}
	if data["x"] != 1 {
		t.Errorf("ServiceData() = %v, want x=1", data)
	}
}
