package server

import "net/http"

// handleStats returns dashboard statistics across all agents.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}
	stats, err := s.db.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
