package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/grumpy-generator/signal-intel/internal/ingest"
	"github.com/grumpy-generator/signal-intel/internal/relay"
	"github.com/sirupsen/logrus"
)

// handleWebhookSignal receives one pre-classified signal from an agent.
func (s *Server) handleWebhookSignal(w http.ResponseWriter, r *http.Request) {
	var payload ingest.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sig, err := s.gateway.IngestOne(r.Context(), payload)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyText) {
			writeError(w, http.StatusBadRequest, "Missing required fields: text/content")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid signal payload")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"signalId": sig.ID,
		"message":  "Signal received",
	})
}

type batchRequest struct {
	Items []ingest.Payload `json:"items"`
}

// handleWebhookBatch imports many signals at once; empty-text items are
// skipped and the response reports the true inserted count.
func (s *Server) handleWebhookBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Items == nil {
		writeError(w, http.StatusBadRequest, "items must be an array")
		return
	}

	inserted, err := s.gateway.IngestBatch(r.Context(), req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Batch import failed")
		return
	}

	ids := make([]string, len(inserted))
	for i, sig := range inserted {
		ids[i] = sig.ID
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"insertedIds": ids,
		"count":       len(ids),
	})
}

// handleTelegramWebhook is the webhook-mode Telegram ingress: it resolves
// the message/channel_post union, classifies the text, and stores a signal.
// Updates without usable text are acknowledged and skipped so Telegram does
// not retry them.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	botToken := mux.Vars(r)["botToken"]
	if s.cfg.TelegramBotToken == "" || botToken != s.cfg.TelegramBotToken {
		writeError(w, http.StatusUnauthorized, "Unknown bot token")
		return
	}

	var update relay.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid update")
		return
	}

	msg := update.Content()
	if msg == nil || msg.Text == "" || strings.HasPrefix(msg.Text, "/") {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "skipped": "no text message"})
		return
	}

	actor := relay.ResolveActor(msg)
	sig, err := s.gateway.IngestMessage(r.Context(), actor, msg.Text, "telegram", "", "")
	if err != nil {
		logrus.Errorf("Telegram webhook ingest failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store signal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"signalId":       sig.ID,
		"classification": sig.Classification,
	})
}
