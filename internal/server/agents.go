package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// defaultHistoryLimit caps trust-history responses when no limit is given.
const defaultHistoryLimit = 100

// handleRegisterAgent enrolls a new agent with its identity attestation.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	var reg trust.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if reg.Name == "" || reg.Provider == "" {
		writeError(w, http.StatusBadRequest, "name and provider are required")
		return
	}

	agent, err := s.engine.RegisterAgent(reg)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// handleGetAgent returns an agent's profile and current trust scores.
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	agent, err := s.engine.GetAgent(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// handleTrustBreakdown returns the detailed factor-level trust report.
func (s *Server) handleTrustBreakdown(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	breakdown, err := s.engine.TrustBreakdown(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// handleTrustHistory returns trust snapshots, most recent first, up to
// ?limit=N (default 100).
func (s *Server) handleTrustHistory(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	history, err := s.engine.TrustHistory(r.PathValue("id"), limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// handleUpdateConfig records a config-hash update for an agent. A changed
// hash increments the change counter and recomputes trust.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}
	agentID := r.PathValue("id")
	if !s.agentLimit(w, agentID) {
		return
	}

	var req struct {
		ConfigHash string `json:"config_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConfigHash == "" {
		writeError(w, http.StatusBadRequest, "config_hash is required")
		return
	}

	agent, err := s.engine.UpdateConfigHash(agentID, req.ConfigHash)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// handleIssueToken issues a JWT encoding the agent's current tier, score,
// and permitted actions.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	var req struct {
		ExpiresIn int `json:"expires_in"` // seconds; 0 means the default
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	agent, err := s.engine.GetAgent(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	permitted, err := s.engine.PermittedActions(agent.Tier)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	signed, err := s.issuer.Issue(agent, permitted, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":             signed,
		"tier":              agent.Tier,
		"permitted_actions": permitted,
	})
}
