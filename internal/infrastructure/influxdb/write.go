package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementEntityState     = "entity_state"
	MeasurementEntityAttribute = "entity_attribute"
)

// WriteEntityState records a numeric entity state, tagged with the entity
// id and its domain.
//
// Example:
//
//	client.WriteEntityState("sensor.living_temperature", "sensor", 21.5, state.LastChanged)
func (c *Client) WriteEntityState(entityID, domain string, value float64, at time.Time) {
	c.write(point(MeasurementEntityState, map[string]string{
		"entity_id": entityID,
		"domain":    domain,
	}, value, at))
}

// WriteEntityAttribute records a numeric attribute, tagged with the
// entity id and the attribute name.
//
//	client.WriteEntityAttribute("media_player.lounge", "volume_level", 0.35, state.LastUpdated)
func (c *Client) WriteEntityAttribute(entityID, attribute string, value float64, at time.Time) {
	c.write(point(MeasurementEntityAttribute, map[string]string{
		"entity_id": entityID,
		"attribute": attribute,
	}, value, at))
}

// point builds a single-field point. A zero at means now.
func point(measurement string, tags map[string]string, value float64, at time.Time) *write.Point {
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(measurement, tags, map[string]any{"value": value}, at)
}
