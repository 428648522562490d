package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/grumpy-generator/signal-intel/internal/store"
)

// handleList serves the filtered, paginated review queue with global stats.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), store.DefaultLimit)
	offset := intParam(q.Get("offset"), 0)

	page := s.store.Query(q.Get("filter"), limit, offset)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sig, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Signal not found")
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sig, err := s.store.SetStatus(mux.Vars(r)["id"], req.Status, req.Note, reviewerFrom(r))
	switch {
	case errors.Is(err, store.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Signal not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

type bulkActionRequest struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}

type bulkActionResponse struct {
	UpdatedIDs []string `json:"updatedIds"`
	Count      int      `json:"count"`
}

// handleBulkAction applies one decision to many signals. Unknown ids are
// skipped; a request with zero matches still succeeds with count 0.
func (s *Server) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	var req bulkActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDs == nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	updated, err := s.store.BulkSetStatus(req.IDs, req.Status, reviewerFrom(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	writeJSON(w, http.StatusOK, bulkActionResponse{UpdatedIDs: updated, Count: len(updated)})
}

// handleDemo exposes a capped recent window without any mutation surface,
// for unauthenticated observers.
func (s *Server) handleDemo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": s.store.Recent(s.cfg.DemoLimit),
		"total":   s.store.Len(),
	})
}

func (s *Server) handleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "active",
		"signalsCount": s.store.Len(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func intParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
