// Package entity holds the live mirror of hub entity states.
//
// It provides:
//   - ID: the (domain, object id) pair that names a hub entity
//   - State: an immutable snapshot of one reported entity state
//   - StoreEntry: the (old, new) pair describing one reported transition
//   - Store: the concurrent map from ID to its latest StoreEntry
//   - History: a bounded newest-first buffer of past states per entity
//
// # Ownership
//
// The event dispatcher is the only writer. Observers, actuators and the
// HTTP API read concurrently through Get, Snapshot and History. A StoreEntry
// is never mutated after it is stored; each reported transition replaces
// the previous entry for that ID under the store lock, so readers never see
// a partially written entry.
//
// # Persistence
//
// Nothing here is persisted. The store is rebuilt from the hub's state
// snapshot every time the connection is (re)established.
//
// Usage:
//
//	store := entity.NewStore(10)
//	store.Seed(id, initial)
//	entry := store.Record(id, next)
//	prev, ok := store.History(id).At(1)
package entity
