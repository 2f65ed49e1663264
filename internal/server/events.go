package server

import "net/http"

// handleEvents upgrades to a WebSocket event stream. Browsers cannot set
// headers on WebSocket requests, so the API key is passed as a query
// parameter instead.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
	if r.URL.Query().Get("api_key") != s.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}
	s.hub.HandleWebSocket(w, r)
}
