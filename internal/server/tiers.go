package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// handleListTiers returns the ordered tier table.
func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.ListTiers())
}

// handleUpdateTier replaces one tier definition. The whole table is
// revalidated before the swap; an invalid update leaves the previous table
// in effect. Accepted updates are persisted so they survive restarts.
func (s *Server) handleUpdateTier(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	index, err := strconv.Atoi(r.PathValue("tier"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tier index")
		return
	}

	var def trust.Tier
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.engine.UpdateTier(index, def); err != nil {
		writeEngineError(w, err)
		return
	}

	def.Tier = index
	if err := s.db.SaveTier(def); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, _ := s.engine.GetTier(index)
	writeJSON(w, http.StatusOK, updated)
}
