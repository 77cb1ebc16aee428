package actuator

import (
	"strconv"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// Sensor is a read-only entity facade. It has no desired state.
type Sensor[V comparable] struct {
	view[V]
}

// NewSensor creates a sensor facade with a custom parser.
func NewSensor[V comparable](id entity.ID, parse func(entity.State) V, deps Deps) *Sensor[V] {
	return &Sensor[V]{view[V]{
		id:     id,
		parse:  parse,
		store:  deps.Store,
		states: deps.States,
	}}
}

// NewTextSensor creates a sensor whose value is the raw state string.
func NewTextSensor(id entity.ID, deps Deps) *Sensor[string] {
	return NewSensor(id, func(s entity.State) string { return s.Value }, deps)
}

// Reading is a numeric sensor value. Valid is false for non-numeric
// states such as "unavailable".
type Reading struct {
	Value float64
	Valid bool
}

// ParseReading parses a numeric state value.
func ParseReading(s entity.State) Reading {
	v, err := strconv.ParseFloat(s.Value, 64)
	if err != nil {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// NewNumericSensor creates a sensor parsing its state as a number.
func NewNumericSensor(id entity.ID, deps Deps) *Sensor[Reading] {
	return NewSensor(id, ParseReading, deps)
}

// Unit returns the reported unit of measurement.
func (s *Sensor[V]) Unit() string {
	snap, ok := s.ActualState()
	if !ok {
		return ""
	}
	unit, _ := snap.State.Text("unit_of_measurement")
	return unit
}
