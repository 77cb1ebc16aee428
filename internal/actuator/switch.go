package actuator

import (
	"context"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// SwitchValue is the state of a switchable entity.
type SwitchValue string

// Switch values.
const (
	SwitchOn          SwitchValue = "on"
	SwitchOff         SwitchValue = "off"
	SwitchUnavailable SwitchValue = "unavailable"
)

// SwitchDelta holds the optional switch modifiers.
type SwitchDelta struct {
	// Toggle asks the hub to flip the switch itself instead of setting
	// the target value, so a stale local state cannot pick the wrong
	// direction.
	Toggle bool
}

// ParseSwitch maps a raw state value. Anything other than on or off is
// unavailable.
func ParseSwitch(s entity.State) SwitchValue {
	switch v := SwitchValue(s.Value); v {
	case SwitchOn, SwitchOff:
		return v
	default:
		return SwitchUnavailable
	}
}

// switchResolver is the rule table for a switchable domain.
func switchResolver(domain string) *service.Resolver[SwitchValue, SwitchDelta] {
	toggleRule := service.When(service.Toggle, func(d SwitchDelta) (map[string]any, bool) {
		return nil, d.Toggle
	})
	return service.NewResolver[SwitchValue, SwitchDelta](domain).
		Terminal(SwitchUnavailable).
		Case(SwitchOn, service.TurnOn, toggleRule).
		Case(SwitchOff, service.TurnOff, toggleRule)
}

// Switch is an on/off actuator. The service domain is taken from the
// entity id, so lights and input_booleans work too.
type Switch struct {
	*Actuator[SwitchValue, SwitchDelta]
}

// NewSwitch creates a switch facade.
func NewSwitch(id entity.ID, deps Deps) *Switch {
	return &Switch{New(id, ParseSwitch, switchResolver(id.Domain), deps)}
}

// TurnOn requests the on state.
func (s *Switch) TurnOn(ctx context.Context) (int64, error) {
	return s.SetDesiredState(ctx, service.Desired[SwitchValue, SwitchDelta]{Value: SwitchOn})
}

// TurnOff requests the off state.
func (s *Switch) TurnOff(ctx context.Context) (int64, error) {
	return s.SetDesiredState(ctx, service.Desired[SwitchValue, SwitchDelta]{Value: SwitchOff})
}

// Toggle flips the switch. The desired value is the opposite of the last
// reported one; the hub performs the flip.
func (s *Switch) Toggle(ctx context.Context) (int64, error) {
	desired := SwitchOn
	if s.IsOn() {
		desired = SwitchOff
	}
	return s.SetDesiredState(ctx, service.Desired[SwitchValue, SwitchDelta]{
		Value: desired,
		Delta: SwitchDelta{Toggle: true},
	})
}

// IsOn reports whether the last reported state is on.
func (s *Switch) IsOn() bool {
	snap, ok := s.ActualState()
	return ok && snap.Value == SwitchOn
}

// OnTurnedOn calls fn whenever the switch goes from off to on.
func (s *Switch) OnTurnedOn(fn func(Change[SwitchValue]) error) Handle {
	return s.Observe(when(func(c Change[SwitchValue]) bool {
		return c.ChangedFrom(SwitchOff, SwitchOn)
	}, fn))
}

// OnTurnedOff calls fn whenever the switch goes from on to off.
func (s *Switch) OnTurnedOff(fn func(Change[SwitchValue]) error) Handle {
	return s.Observe(when(func(c Change[SwitchValue]) bool {
		return c.ChangedFrom(SwitchOn, SwitchOff)
	}, fn))
}

// powerConsumptionAttr is the attribute reported by metering switches.
const powerConsumptionAttr = "power_consumption"

// PowerSwitch is a switch that also reports its power draw.
type PowerSwitch struct {
	*Switch
}

// NewPowerSwitch creates a metering switch facade.
func NewPowerSwitch(id entity.ID, deps Deps) *PowerSwitch {
	return &PowerSwitch{NewSwitch(id, deps)}
}

// PowerConsumption returns the last reported power draw.
func (p *PowerSwitch) PowerConsumption() (float64, bool) {
	snap, ok := p.ActualState()
	if !ok {
		return 0, false
	}
	return snap.State.Float(powerConsumptionAttr)
}
