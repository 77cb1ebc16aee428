package service

import (
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// Rule maps one optional delta to a service.
//
// Data inspects the delta and returns the service data and true when the
// delta it handles is present.
type Rule[D any] struct {
	Service string
	Data    func(delta D) (map[string]any, bool)
}

// When builds a Rule.
func When[D any](service string, data func(delta D) (map[string]any, bool)) Rule[D] {
	return Rule[D]{Service: service, Data: data}
}

// resolverCase is the rule list for one desired value.
type resolverCase[D any] struct {
	rules    []Rule[D]
	fallback string
}

// Resolver holds the rule table of one actuator type.
//
// A Resolver is built once during wiring and is read-only afterwards, so
// Resolve is safe for concurrent use.
type Resolver[V comparable, D any] struct {
	domain   string
	cases    map[V]resolverCase[D]
	terminal map[V]struct{}
}

// NewResolver creates an empty rule table for a service domain.
func NewResolver[V comparable, D any](domain string) *Resolver[V, D] {
	return &Resolver[V, D]{
		domain:   domain,
		cases:    make(map[V]resolverCase[D]),
		terminal: make(map[V]struct{}),
	}
}

// Terminal marks values that can never be commanded or commanded from.
func (r *Resolver[V, D]) Terminal(values ...V) *Resolver[V, D] {
	for _, v := range values {
		r.terminal[v] = struct{}{}
	}
	return r
}

// Case declares the rules for a desired value, in priority order, and the
// fallback service used when no rule matches.
func (r *Resolver[V, D]) Case(value V, fallback string, rules ...Rule[D]) *Resolver[V, D] {
	r.cases[value] = resolverCase[D]{rules: rules, fallback: fallback}
	return r
}

// Domain returns the service domain.
func (r *Resolver[V, D]) Domain() string {
	return r.domain
}

// IsTerminal reports whether v is a terminal value.
func (r *Resolver[V, D]) IsTerminal(v V) bool {
	_, ok := r.terminal[v]
	return ok
}

// Resolve produces the single command for desired, given the actuator's
// actual value.
//
// Returns:
//   - Command: the resolved command addressing target
//   - error: wraps ErrResolution and ErrNotActionable or ErrNoRule
func (r *Resolver[V, D]) Resolve(target entity.ID, actual V, desired Desired[V, D]) (Command, error) {
	if r.IsTerminal(actual) {
		return Command{}, fmt.Errorf("%w: %w: %s is %v", ErrResolution, ErrNotActionable, target, actual)
	}
	if r.IsTerminal(desired.Value) {
		return Command{}, fmt.Errorf("%w: %w: %s cannot be set to %v", ErrResolution, ErrNotActionable, target, desired.Value)
	}

	c, ok := r.cases[desired.Value]
	if !ok {
		return Command{}, fmt.Errorf("%w: %w: %s has no rule for %v", ErrResolution, ErrNoRule, target, desired.Value)
	}

	for _, rule := range c.rules {
		if data, present := rule.Data(desired.Delta); present {
			return NewCommand(r.domain, rule.Service, target, data), nil
		}
	}
	return NewCommand(r.domain, c.fallback, target, nil), nil
}
