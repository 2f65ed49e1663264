package server

import (
	"encoding/json"
	"net/http"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// handleRecordAction appends a signed receipt to the agent's chain and
// recomputes its trust scores.
func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	var req struct {
		AgentID string `json:"agent_id"`
		Action  string `json:"action"`
		Outcome string `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "agent_id and action are required")
		return
	}
	outcome, err := trust.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.agentLimit(w, req.AgentID) {
		return
	}

	receipt, err := s.engine.RecordAction(req.AgentID, req.Action, outcome)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}
