// Package mqtt provides the MQTT client used by grayhub's state mirror.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// grayhub is not a bridge between protocols. It republishes the hub state it
// mirrors so that other local services can consume it without speaking the
// hub's websocket protocol:
//
//	Hub ↔ grayhub → MQTT Broker → consumers
//
// All topics live under a configurable prefix (default "grayhub"):
//
//	{prefix}/state/{entity_id}    retained, latest state per entity
//	{prefix}/event/{event_type}   named hub events, not retained
//	{prefix}/status               retained online/offline, LWT
//	{prefix}/command/{domain}/{service}  inbound service calls
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.PublishRetained(topics.State("switch.kitchen"), payload)
package mqtt
