package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/entity"
)

// StateResponse is one entity in the store.
type StateResponse struct {
	EntityID string       `json:"entity_id"`
	OldState entity.State `json:"old_state"`
	NewState entity.State `json:"new_state"`
}

// HistoryResponse lists an entity's states, newest first.
type HistoryResponse struct {
	EntityID string         `json:"entity_id"`
	States   []entity.State `json:"states"`
}

func statePayload(id entity.ID, entry entity.StoreEntry) StateResponse {
	return StateResponse{EntityID: id.String(), OldState: entry.Old, NewState: entry.New}
}

// statesIn returns the stored entities of domain ("" for all) ordered by id.
func (s *Server) statesIn(domain string) []StateResponse {
	records := s.store.Snapshot()
	states := make([]StateResponse, 0, len(records))
	for _, rec := range records {
		if domain != "" && rec.ID.Domain != domain {
			continue
		}
		states = append(states, statePayload(rec.ID, rec.Entry))
	}
	return states
}

// allStates answers stream get_states requests.
func (s *Server) allStates() []StateResponse {
	return s.statesIn("")
}

// handleListStates returns every entity in the store ordered by id.
//
// Query parameters:
//   - domain: only entities of this domain
func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	states := s.statesIn(strings.TrimSpace(r.URL.Query().Get("domain")))

	writeJSON(w, http.StatusOK, map[string]any{
		"states": states,
		"count":  len(states),
	})
}

// handleGetState returns one entity.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}

	entry, found := s.store.Get(id)
	if !found {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, statePayload(id, entry))
}

// handleGetHistory returns the in-memory history of one entity.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := entityParam(w, r)
	if !ok {
		return
	}

	if _, found := s.store.Get(id); !found {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		EntityID: id.String(),
		States:   s.store.History(id).States(),
	})
}

// entityParam parses the {entity_id} route parameter, writing a 400 on
// failure.
func entityParam(w http.ResponseWriter, r *http.Request) (entity.ID, bool) {
	id, err := entity.ParseID(chi.URLParam(r, "entity_id"))
	if err != nil {
		writeBadRequest(w, "invalid entity id")
		return entity.ID{}, false
	}
	return id, true
}
