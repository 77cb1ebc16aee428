// Package api implements the HTTP REST API and WebSocket stream of the hub
// mirror.
//
// This package provides:
//   - Read endpoints for the entity store and per-entity history
//   - A service call endpoint that submits commands to the hub
//   - Command log queries backed by the audit repository
//   - A WebSocket stream of state changes and named events
//   - Middleware stack (request ID, logging, recovery, CORS, bearer token)
//
// # Graceful Degradation
//
// Every dependency except the entity store is optional. Without a hub
// connection, reads keep serving the last known states and service calls
// fail with 503; without the database the command log routes answer 503.
package api
