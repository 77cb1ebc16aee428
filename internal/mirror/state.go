package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/observer"
)

// Publisher is the MQTT client subset the mirror needs.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	PublishTransient(topic string, payload []byte) error
}

// StateMessage is the retained payload on a state topic.
type StateMessage struct {
	EntityID string       `json:"entity_id"`
	OldState entity.State `json:"old_state"`
	NewState entity.State `json:"new_state"`
}

// StateMirror publishes state changes and named events to MQTT.
//
// Observer invocations run concurrently, so two changes of one entity can
// reach the mirror out of order. The mirror remembers the LastUpdated it
// last published per entity and skips anything older.
type StateMirror struct {
	pub    Publisher
	topics mqtt.Topics
	store  *entity.Store
	logger Logger

	mu     sync.Mutex
	latest map[entity.ID]time.Time

	observers *event.Observers
	states    observer.Handle
	events    observer.Handle
}

// NewStateMirror creates a mirror publishing through pub. store is read by
// PublishAll.
func NewStateMirror(pub Publisher, topics mqtt.Topics, store *entity.Store) *StateMirror {
	return &StateMirror{
		pub:    pub,
		topics: topics,
		store:  store,
		logger: noopLogger{},
		latest: make(map[entity.ID]time.Time),
	}
}

// SetLogger sets the logger.
func (m *StateMirror) SetLogger(logger Logger) {
	m.logger = orNoop(logger)
}

// Attach subscribes the mirror to every state change and named event.
func (m *StateMirror) Attach(obs *event.Observers) {
	m.observers = obs
	m.states = obs.States.AttachAll(m.PublishChange)
	m.events = obs.Events.AttachAll(m.PublishEvent)
}

// Detach removes the mirror's observers.
func (m *StateMirror) Detach() {
	if m.observers == nil {
		return
	}
	m.observers.States.Detach(m.states)
	m.observers.Events.Detach(m.events)
	m.observers = nil
}

// PublishChange publishes one recorded transition.
func (m *StateMirror) PublishChange(c event.Change) error {
	return m.publishState(c.EntityID, c.Entry)
}

// PublishEvent publishes a named hub event (not retained).
func (m *StateMirror) PublishEvent(ev event.NamedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", ev.Type, err)
	}
	return m.deliver(m.pub.PublishTransient(m.topics.Event(ev.Type), payload))
}

// PublishAll republishes every entity in the store. Returns how many
// states were published; the first failure is returned after trying all.
func (m *StateMirror) PublishAll() (int, error) {
	var (
		published int
		firstErr  error
	)
	for _, rec := range m.store.Snapshot() {
		m.forget(rec.ID)
		if err := m.publishState(rec.ID, rec.Entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		published++
	}
	m.logger.Info("states republished", "published", published)
	return published, firstErr
}

func (m *StateMirror) publishState(id entity.ID, entry entity.StoreEntry) error {
	if !m.advance(id, entry.New.LastUpdated) {
		m.logger.Debug("skipping stale state", "entity_id", id)
		return nil
	}

	payload, err := json.Marshal(StateMessage{
		EntityID: id.String(),
		OldState: entry.Old,
		NewState: entry.New,
	})
	if err != nil {
		return fmt.Errorf("encoding state of %s: %w", id, err)
	}
	return m.deliver(m.pub.PublishRetained(m.topics.State(id.String()), payload))
}

// advance records at as the newest published update for id. It reports
// false if a newer update has already been published.
func (m *StateMirror) advance(id entity.ID, at time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.latest[id]; ok && at.Before(prev) {
		return false
	}
	m.latest[id] = at
	return true
}

func (m *StateMirror) forget(id entity.ID) {
	m.mu.Lock()
	delete(m.latest, id)
	m.mu.Unlock()
}

// deliver treats a disconnected broker as a skip: PublishAll runs again
// on reconnect.
func (m *StateMirror) deliver(err error) error {
	if errors.Is(err, mqtt.ErrNotConnected) {
		m.logger.Debug("mqtt not connected, publish skipped")
		return nil
	}
	return err
}
