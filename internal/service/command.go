package service

import (
	"maps"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// Common services shared by most actuator domains.
const (
	TurnOn  = "turn_on"
	TurnOff = "turn_off"
	Toggle  = "toggle"
)

// Command is a fully resolved hub service invocation.
type Command struct {
	// Domain is the service domain, e.g. "switch" or "media_player".
	Domain string

	// Service is the service name within the domain, e.g. "turn_on".
	Service string

	// Target is the entity the command addresses. Nil for hub-wide
	// services.
	Target *entity.ID

	// Data is the additional service data (without entity_id).
	Data map[string]any
}

// NewCommand builds a command addressing target.
func NewCommand(domain, service string, target entity.ID, data map[string]any) Command {
	return Command{
		Domain:  domain,
		Service: service,
		Target:  &target,
		Data:    data,
	}
}

// ServiceData returns the payload sent to the hub: Data plus entity_id
// when the command has a target.
func (c Command) ServiceData() map[string]any {
	out := make(map[string]any, len(c.Data)+1)
	maps.Copy(out, c.Data)
	if c.Target != nil {
		out["entity_id"] = c.Target.String()
	}
	return out
}

// String returns "domain.service" for logs.
func (c Command) String() string {
	return c.Domain + "." + c.Service
}

// Desired is a partially specified desired state: the target value plus
// optional deltas. D is the actuator's delta struct; absent deltas are
// nil pointers.
type Desired[V comparable, D any] struct {
	Value V
	Delta D
}
