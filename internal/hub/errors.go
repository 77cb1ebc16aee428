package hub

import "errors"

// Domain errors for the hub package.
var (
	// ErrNotConnected is returned when a command is sent while no
	// connection is established.
	ErrNotConnected = errors.New("hub: not connected")

	// ErrDisconnected fails waiters whose connection dropped.
	ErrDisconnected = errors.New("hub: connection lost")

	// ErrHandshake is returned when the auth handshake is malformed.
	ErrHandshake = errors.New("hub: handshake failed")

	// ErrAuthInvalid is returned when the hub rejects the access token.
	// It is not retried.
	ErrAuthInvalid = errors.New("hub: access token rejected")

	// ErrReconnectExhausted is returned when reconnect.max_attempts is reached.
	ErrReconnectExhausted = errors.New("hub: reconnect attempts exhausted")

	// ErrTimeout is returned when the hub does not answer a request in time.
	ErrTimeout = errors.New("hub: request timed out")
)
