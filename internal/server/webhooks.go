package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/ssd-technologies/trustgate/internal/storage"
)

// handleCreateWebhook registers an event-delivery target.
func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}

	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
		Secret string   `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || u.Scheme == "" || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be absolute")
		return
	}

	hook := &storage.Webhook{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		Enabled:   true,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.db.CreateWebhook(hook); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

// handleListWebhooks returns all webhook registrations.
func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	if !s.apiKeyAuth(w, r) {
		return
	}
	hooks, err := s.db.ListWebhooks()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if hooks == nil {
		hooks = []storage.Webhook{}
	}
	writeJSON(w, http.StatusOK, hooks)
}
