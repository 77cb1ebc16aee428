// Package influxdb records entity telemetry in InfluxDB v2.
//
// Numeric entity states (sensor readings) and selected numeric attributes
// (volume level, power consumption, cover position) become points in the
// entity_state and entity_attribute measurements, so they can be graphed
// without querying the hub.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { log.Error("telemetry", "error", err) })
//	client.WriteEntityState("sensor.living_temperature", "sensor", 21.5, changedAt)
//
// Writes never block: points are batched by influxdb-client-go and failed
// batches are reported through SetOnError wrapped in ErrWriteFailed.
package influxdb
