// Package mirror republishes the hub's entity states to local consumers.
//
// StateMirror attaches to every state change and named event and publishes
// them on MQTT: states retained under {prefix}/state/{entity_id}, events
// under {prefix}/event/{event_type}. After every hub snapshot (and every
// MQTT reconnect) the whole store is republished, since seeding does not
// notify observers.
//
// Telemetry records numeric states and selected numeric attributes to
// InfluxDB.
//
// CommandIngress is the reverse direction: service calls published on
// {prefix}/command/{domain}/{service} are submitted to the hub.
package mirror
