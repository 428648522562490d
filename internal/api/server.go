// Package api binds the review workflow, the ingestion webhook, and the
// public demo view to HTTP. Authentication is a boundary check only: the
// handlers trust whatever reviewer identity the middleware attaches.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/grumpy-generator/signal-intel/internal/config"
	"github.com/grumpy-generator/signal-intel/internal/ingest"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/sirupsen/logrus"
)

type contextKey string

const reviewerKey contextKey = "reviewer"

// Server holds the HTTP surface's collaborators.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	gateway *ingest.Gateway
}

// NewServer creates the HTTP surface over the given store and gateway.
func NewServer(cfg *config.Config, st *store.Store, gateway *ingest.Gateway) *Server {
	return &Server{cfg: cfg, store: st, gateway: gateway}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Reviewer surface (bearer auth)
	apiRouter := router.PathPrefix("/api/signals").Subrouter()
	apiRouter.Use(s.requireReviewer)
	apiRouter.HandleFunc("", s.handleList).Methods("GET")
	apiRouter.HandleFunc("/bulk-action", s.handleBulkAction).Methods("POST")
	apiRouter.HandleFunc("/{id}", s.handleGet).Methods("GET")
	apiRouter.HandleFunc("/{id}", s.handleUpdateStatus).Methods("PATCH")

	// Ingestion webhook (shared-secret token)
	webhook := router.PathPrefix("/webhook").Subrouter()
	webhook.HandleFunc("/status", s.handleWebhookStatus).Methods("GET")
	webhook.Handle("/signal", s.requireWebhookToken(http.HandlerFunc(s.handleWebhookSignal))).Methods("POST")
	webhook.Handle("/signals/batch", s.requireWebhookToken(http.HandlerFunc(s.handleWebhookBatch))).Methods("POST")

	// Telegram webhook-mode ingress; the bot token in the path is the secret
	router.HandleFunc("/relay/telegram/{botToken}", s.handleTelegramWebhook).Methods("POST")

	// Public read-only demo view
	router.HandleFunc("/demo/public", s.handleDemo).Methods("GET")

	return router
}

// corsMiddleware answers preflights and tags responses for the configured
// dashboard origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.AllowedOrigins))
	for _, origin := range s.cfg.AllowedOrigins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, x-webhook-token")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireWebhookToken checks the shared agent secret, supplied either as the
// x-webhook-token header or a ?token= query parameter.
func (s *Server) requireWebhookToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-webhook-token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" || token != s.cfg.WebhookToken {
			writeError(w, http.StatusUnauthorized, "Invalid webhook token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireReviewer resolves the bearer token to a reviewer name and attaches
// it to the request context for processedBy stamping.
func (s *Server) requireReviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		reviewer, ok := s.cfg.ReviewerForToken(auth[len(prefix):])
		if !ok {
			writeError(w, http.StatusUnauthorized, "Invalid bearer token")
			return
		}
		ctx := context.WithValue(r.Context(), reviewerKey, reviewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reviewerFrom returns the authenticated reviewer name the middleware
// attached.
func reviewerFrom(r *http.Request) string {
	if name, ok := r.Context().Value(reviewerKey).(string); ok {
		return name
	}
	return "unknown"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
