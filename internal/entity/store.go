package entity

import (
	"sort"
	"sync"
)

// Record is one (id, entry) pair returned by Store.Snapshot.
type Record struct {
	ID    ID
	Entry StoreEntry
}

// Store maps entity IDs to their latest reported transition.
//
// It also owns the per-entity History buffers so that the store entry and
// the history are updated together under one lock.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     map[ID]StoreEntry
	histories   map[ID]*History
	historySize int
}

// NewStore creates an empty store whose histories hold historySize states.
func NewStore(historySize int) *Store {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Store{
		entries:     make(map[ID]StoreEntry),
		histories:   make(map[ID]*History),
		historySize: historySize,
	}
}

// Get returns the latest entry for id. The boolean is false if the
// entity has never been reported.
func (s *Store) Get(id ID) (StoreEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return entry, ok
}

// Set replaces the entry for id.
func (s *Store) Set(id ID, entry StoreEntry) {
	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()
}

// Record applies a newly reported state: the previous entry's New becomes
// Old, state becomes New, and state is pushed onto the entity's history.
// For an entity seen for the first time Old equals New.
//
// Returns the stored entry and a view of the updated history.
func (s *Store) Record(id ID, state State) (StoreEntry, HistoryView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := state
	if prev, ok := s.entries[id]; ok {
		old = prev.New
	}
	entry := StoreEntry{Old: old, New: state}
	s.entries[id] = entry

	h := s.historyLocked(id)
	h.Push(state)
	return entry, h.View()
}

// Seed installs a state from the hub snapshot with Old equal to New.
// The history is restarted with that single state.
func (s *Store) Seed(id ID, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = StoreEntry{Old: state, New: state}
	h := NewHistory(s.historySize)
	h.Push(state)
	s.histories[id] = h
}

// History returns a view of the entity's history (empty if unknown).
func (s *Store) History(id ID) HistoryView {
	s.mu.RLock()
	h, ok := s.histories[id]
	s.mu.RUnlock()
	if !ok {
		return HistoryView{}
	}
	return h.View()
}

// Clear removes all entries and histories.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[ID]StoreEntry)
	s.histories = make(map[ID]*History)
	s.mu.Unlock()
}

// Len returns the number of entities in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns every entry, ordered by entity id.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	records := make([]Record, 0, len(s.entries))
	for id, entry := range s.entries {
		records = append(records, Record{ID: id, Entry: entry})
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID.String() < records[j].ID.String()
	})
	return records
}

// historyLocked returns the entity's history, creating it on first use.
// Caller must hold s.mu for writing.
func (s *Store) historyLocked(id ID) *History {
	h, ok := s.histories[id]
	if !ok {
		h = NewHistory(s.historySize)
		s.histories[id] = h
	}
	return h
}
