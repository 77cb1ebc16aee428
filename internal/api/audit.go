package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/audit"
)

// handleListCommands returns paginated command log entries with optional
// filters.
//
// Query parameters:
//   - domain, service: filter by service
//   - entity_id: filter by target entity
//   - status: submitted, succeeded, failed, rejected, unanswered
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "command log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Domain:   q.Get("domain"),
		Service:  q.Get("service"),
		EntityID: q.Get("entity_id"),
		Status:   audit.Status(q.Get("status")),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command log", "error", err)
		writeInternalError(w, "failed to list command log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetCommand returns one command log entry.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "command log not configured")
		return
	}

	entry, err := s.auditRepo.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, audit.ErrNotFound) {
		writeNotFound(w, "command not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get command", "error", err)
		writeInternalError(w, "failed to get command")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}
