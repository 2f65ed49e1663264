package server

import (
	"errors"
	"net/http"

	"github.com/ssd-technologies/trustgate/internal/trust"
)

// handleReceiptChain returns the agent's receipt chain, newest first.
func (s *Server) handleReceiptChain(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	receipts, err := s.engine.ReceiptChain(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if receipts == nil {
		receipts = []trust.Receipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleVerifyChain verifies the full receipt chain. A broken chain is
// reported with the offending index, never repaired.
func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	err := s.engine.VerifyChain(r.PathValue("id"))
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": true})
		return
	}

	var broken *trust.ChainBrokenError
	if errors.As(err, &broken) {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid":     false,
			"broken_at": broken.Index,
			"reason":    broken.Reason,
		})
		return
	}
	writeEngineError(w, err)
}
