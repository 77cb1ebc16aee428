// Package event classifies inbound hub envelopes and routes them.
//
// The transport decodes every inbound frame into an Envelope. The
// Dispatcher consumes the envelope stream on a single goroutine, in
// arrival order:
//
//   - state changes update the entity.Store and fan out to state observers
//   - named events fan out to event observers keyed by event type
//   - command results complete the matching Pending waiter
//   - state snapshots reseed the store without notifying observers
//   - failed results and transport errors fan out to error observers
//   - anything unrecognised is logged and dropped
//
// Because the store is written only here, observers of one entity see
// its transitions recorded in order even though their invocations run
// concurrently.
package event
