// Package server exposes the Trustgate HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ssd-technologies/trustgate/internal/notify"
	"github.com/ssd-technologies/trustgate/internal/ratelimit"
	"github.com/ssd-technologies/trustgate/internal/storage"
	"github.com/ssd-technologies/trustgate/internal/token"
	"github.com/ssd-technologies/trustgate/internal/trust"
)

// agentRateLimit is the per-agent request budget for mutating endpoints.
const agentRateLimit = 60

// Server is the main HTTP server for the Trustgate API.
type Server struct {
	db      *storage.DB
	engine  *trust.Engine
	issuer  *token.Issuer
	hub     *notify.Hub
	limiter *ratelimit.Keyed
	apiKey  string
	mux     *http.ServeMux
}

// New creates a new Server with all routes registered. hub may be nil to
// disable the WebSocket event stream.
func New(db *storage.DB, engine *trust.Engine, issuer *token.Issuer, hub *notify.Hub, apiKey string) *Server {
	s := &Server{
		db:      db,
		engine:  engine,
		issuer:  issuer,
		hub:     hub,
		limiter: ratelimit.NewKeyed(agentRateLimit, time.Minute),
		apiKey:  apiKey,
		mux:     http.NewServeMux(),
	}
	s.routes()

	// Bound limiter memory over long uptimes with many distinct agents.
	go func() {
		for range time.Tick(10 * time.Minute) {
			s.limiter.Prune()
		}
	}()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Agents
	s.mux.HandleFunc("POST /api/agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("GET /api/agents/{id}/trust", s.handleTrustBreakdown)
	s.mux.HandleFunc("GET /api/agents/{id}/history", s.handleTrustHistory)
	s.mux.HandleFunc("POST /api/agents/{id}/config", s.handleUpdateConfig)
	s.mux.HandleFunc("POST /api/agents/{id}/token", s.handleIssueToken)

	// Actions and receipts
	s.mux.HandleFunc("POST /api/actions", s.handleRecordAction)
	s.mux.HandleFunc("GET /api/agents/{id}/receipts", s.handleReceiptChain)
	s.mux.HandleFunc("GET /api/agents/{id}/receipts/verify", s.handleVerifyChain)

	// Authorization
	s.mux.HandleFunc("POST /api/authorize", s.handleAuthorize)
	s.mux.HandleFunc("POST /api/authorize/batch", s.handleAuthorizeBatch)

	// Tiers
	s.mux.HandleFunc("GET /api/tiers", s.handleListTiers)
	s.mux.HandleFunc("PUT /api/tiers/{tier}", s.handleUpdateTier)

	// Webhooks and events
	s.mux.HandleFunc("POST /api/webhooks", s.handleCreateWebhook)
	s.mux.HandleFunc("GET /api/webhooks", s.handleListWebhooks)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	// Stats
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "trustgate",
	})
}

// apiKeyAuth checks the X-API-Key header. Returns false (writing a 401) if
// the header is missing or incorrect.
func (s *Server) apiKeyAuth(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-API-Key") != s.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return false
	}
	return true
}

// agentLimit applies the per-agent rate limit for mutating endpoints.
// Returns false (writing a 429) when the budget is exhausted.
func (s *Server) agentLimit(w http.ResponseWriter, agentID string) bool {
	if !s.limiter.Allow(agentID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps trust-core errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		tierErr   *trust.InvalidTierRangeError
		policyErr *trust.PolicyMissingError
	)
	switch {
	case errors.Is(err, trust.ErrAgentNotFound):
		writeError(w, http.StatusNotFound, "agent not found")
	case errors.Is(err, trust.ErrInvalidAttestation),
		errors.Is(err, trust.ErrInvalidWeights),
		errors.As(err, &tierErr),
		errors.As(err, &policyErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
