package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/hub"
	"github.com/nerrad567/gray-logic-hub/internal/service"
)

// handleCallService submits a service call to the hub and answers 202 with
// the correlation id. The body is the service data object; an optional
// "entity_id" member selects the target. The outcome is recorded in the
// command log when auditing is enabled.
func (s *Server) handleCallService(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeUnavailable(w, "service calls are not available")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large or unreadable")
		return
	}

	cmd, err := service.DecodeCall(chi.URLParam(r, "domain"), chi.URLParam(r, "service"), body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	id, err := s.commands.Submit(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, hub.ErrNotConnected) {
			writeUnavailable(w, "hub not connected")
			return
		}
		s.logger.Error("service call failed", "service", cmd.String(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeHubError, err.Error())
		return
	}

	resp := map[string]any{
		"id":      id,
		"service": cmd.String(),
	}
	if cmd.Target != nil {
		resp["entity_id"] = cmd.Target.String()
	}
	writeJSON(w, http.StatusAccepted, resp)
}
