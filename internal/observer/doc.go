// Package observer provides the registry that fans events out to
// user-supplied observer callbacks.
//
// A Registry is keyed by whatever identifies an event source: the entity
// ID for state changes, the event type for named hub events, or a single
// constant key for error responses. Observers come in two styles:
//
//   - Func: a plain callback. A returned error or panic is reported as a
//     Fault and the observer stays attached for future events.
//   - AsyncFunc: a callback that receives a context which is cancelled when
//     the observer is detached or the registry is closed. It may chain
//     longer-running work. An unhandled failure is reported exactly once
//     and the observer is detached.
//
// # Dispatch
//
// Dispatch takes a snapshot of the observers attached to the key (plus the
// wildcard observers) and schedules one task per observer. Sync observers
// share a bounded worker pool; async observers run outside it, so an
// observer parked on its context holds no worker. Dispatch returns without
// waiting, so a slow observer never backpressures the caller.
//
// Ordering: invocations of different observers run concurrently. Successive
// invocations of the same observer are NOT ordered either; a long-running
// observer can still be handling event N when event N+1 starts. Observers
// that need strict ordering must serialise internally (for example with
// their own mutex or channel). Adding such a guarantee here would let one
// slow observer delay delivery to itself indefinitely, so the registry
// trades ordering for responsiveness.
//
// # Faults
//
// Nothing raised inside an observer propagates to the caller of Dispatch.
// Errors and recovered panics are converted into Fault values and handed
// to the registry's FaultHandler, which logs them by default.
package observer
