// Package hub is the websocket transport to the upstream home-automation
// hub (Home Assistant websocket API).
//
// A Client keeps one connection open, re-establishing it with exponential
// backoff. Each connection runs through:
//
//  1. auth_required / auth / auth_ok handshake
//  2. subscribe_events (all events, or the configured types)
//  3. get_states, delivered in-stream as a snapshot envelope so the store
//     is reseeded in order with later state changes
//  4. read and write pumps (errgroup) until either fails
//
// Every inbound frame is decoded into an event.Envelope and queued on an
// unbounded queue read through Events(). The channel survives reconnects
// and is closed when Run returns.
//
// Commands carry ids from one process-wide counter, so ids keep increasing
// across reconnects. Waiters still open when a connection drops are failed
// with ErrDisconnected; failed commands are never retried.
package hub
