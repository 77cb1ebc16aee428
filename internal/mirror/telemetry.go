package mirror

import (
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
)

// PointWriter is the InfluxDB client subset Telemetry needs.
type PointWriter interface {
	WriteEntityState(entityID, domain string, value float64, at time.Time)
	WriteEntityAttribute(entityID, attribute string, value float64, at time.Time)
}

// Telemetry records numeric entity states and attributes as time series.
type Telemetry struct {
	w          PointWriter
	attributes []string

	registry *observer.Registry[entity.ID, event.Change]
	handle   observer.Handle
}

// NewTelemetry creates a recorder that writes numeric states plus the
// named numeric attributes.
func NewTelemetry(w PointWriter, attributes []string) *Telemetry {
	return &Telemetry{w: w, attributes: append([]string(nil), attributes...)}
}

// Attach records every subsequent state change.
func (t *Telemetry) Attach(states *observer.Registry[entity.ID, event.Change]) {
	t.registry = states
	t.handle = states.AttachAll(t.Record)
}

// Detach stops recording.
func (t *Telemetry) Detach() {
	if t.registry != nil {
		t.registry.Detach(t.handle)
		t.registry = nil
	}
}

// Record writes the numeric parts of one change that differ from the
// previous state. Non-numeric states and absent attributes are skipped.
func (t *Telemetry) Record(c event.Change) error {
	id := c.EntityID.String()
	cur, prev := c.Entry.New, c.Entry.Old

	if v, err := strconv.ParseFloat(cur.Value, 64); err == nil && cur.Value != prev.Value {
		t.w.WriteEntityState(id, c.EntityID.Domain, v, at(cur))
	}

	for _, name := range t.attributes {
		v, ok := cur.Float(name)
		if !ok {
			continue
		}
		if old, had := prev.Float(name); had && old == v {
			continue
		}
		t.w.WriteEntityAttribute(id, name, v, at(cur))
	}
	return nil
}

func at(s entity.State) time.Time {
	if !s.LastUpdated.IsZero() {
		return s.LastUpdated
	}
	if !s.LastChanged.IsZero() {
		return s.LastChanged
	}
	return time.Now()
}
