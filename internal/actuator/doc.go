// Package actuator provides typed facades over hub entities.
//
// An Actuator couples an entity id with a value parser, a service
// resolver and a submitter. Reading goes through the shared entity.Store
// (written only by the event dispatcher); writing goes through
// SetDesiredState, which resolves exactly one service command and hands it
// to the transport. The actual state changes only when the hub reports the
// new state back.
//
// The concrete types (Switch, PowerSwitch, MediaReceiver, Cover, Sensor)
// add convenience commands and transition-specific observer helpers.
package actuator
