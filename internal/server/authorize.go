package server

import (
	"encoding/json"
	"net/http"
)

// handleAuthorize decides whether an agent may perform a single action.
// A denial is a normal 200 response; only unknown agents or actions with no
// configured policy produce errors.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	var req struct {
		AgentID string `json:"agent_id"`
		Action  string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "agent_id and action are required")
		return
	}

	decision, err := s.engine.Authorize(req.AgentID, req.Action)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// handleAuthorizeBatch evaluates several actions against one consistent
// (tier, score) snapshot.
func (s *Server) handleAuthorizeBatch(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	var req struct {
		AgentID string   `json:"agent_id"`
		Actions []string `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" || len(req.Actions) == 0 {
		writeError(w, http.StatusBadRequest, "agent_id and actions are required")
		return
	}

	decisions, err := s.engine.AuthorizeBatch(req.AgentID, req.Actions)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}
